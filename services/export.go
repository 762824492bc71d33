package services

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"weightloss-ingest/models"
)

// LongColumns ist die Spaltenreihenfolge des Long-Format-Exports.
var LongColumns = []string{
	"Filename", "Variety", "Formulation", "Number of Samples", "UploadDate",
	"DateDifference", "WLD", "Weight", "group_id", "file_code", "avg_weight_loss",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// WriteLongCSV schreibt Observations im Long-Format. Null-Werte werden als leere Zellen geschrieben.
func WriteLongCSV(w io.Writer, obs []models.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LongColumns); err != nil {
		return err
	}
	for _, o := range obs {
		rec := []string{
			o.Filename,
			o.Variety,
			o.Formulation,
			optionalInt(o.SampleCount),
			formatTime(o.UploadDate),
			formatTime(o.DateDifference),
			strconv.Itoa(o.WLD),
			optionalFloat(o.Weight),
			strconv.FormatInt(o.GroupID, 10),
			o.FileCode,
			optionalFloat(o.AvgWeightLoss),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(exportTimeLayout)
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
