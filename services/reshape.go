package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"weightloss-ingest/models"
)

// dayColumnPattern erkennt Tagesspalten WLD<n>.
var dayColumnPattern = regexp.MustCompile(`^WLD(\d+)$`)

// Tag-0-Spalte, die in Exporten mit dem Buchstaben O statt der Ziffer 0 auftaucht.
const dayZeroAlias = "WLDO"

// naTokens werden wie leere Zellen behandelt.
var naTokens = map[string]bool{"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "-": true}

// ReshapeError beschreibt fehlerhafte Daten in einer formal gültigen Datei.
type ReshapeError struct {
	Row    int // 1-basiert, Kopfzeile nicht mitgezählt; 0 = Kopfzeile
	Column string
	Err    error
}

func (e *ReshapeError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("reshape: column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("reshape: row %d column %q: %v", e.Row, e.Column, e.Err)
}

func (e *ReshapeError) Unwrap() error { return e.Err }

// ReshapeInput trägt die dateibezogenen Werte, die in jede Zeile übernommen werden.
type ReshapeInput struct {
	Filename   string
	UploadDate time.Time
	FileCode   string
}

type dayColumn struct {
	index int // Spaltenposition
	day   int // WLD
	name  string
}

// WideRecords typisiert die Zeilen einer validierten Tabelle.
// Fehlt "Number of Samples", bleibt SampleCount nil.
func WideRecords(t *Table) ([]models.WideRecord, error) {
	days, err := dayColumns(t.Header)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, &ReshapeError{Column: "WLD<n>", Err: errors.New("no day columns found")}
	}
	if len(t.Rows) == 0 {
		return nil, &ReshapeError{Column: ColSampleNumber, Err: errors.New("no data rows")}
	}
	sampleIdx := t.Index(ColSampleNumber)
	if sampleIdx < 0 {
		return nil, &ReshapeError{Column: ColSampleNumber, Err: errors.New("column missing")}
	}
	varietyIdx, formulationIdx, countIdx := t.Index(ColVariety), t.Index(ColFormulation), t.Index(ColSampleCount)

	records := make([]models.WideRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		rowNo := i + 1
		sample, err := parseInteger(cell(row, sampleIdx))
		if err != nil {
			return nil, &ReshapeError{Row: rowNo, Column: ColSampleNumber, Err: err}
		}
		rec := models.WideRecord{
			SampleNumber: sample,
			Variety:      strings.TrimSpace(cell(row, varietyIdx)),
			Formulation:  strings.TrimSpace(cell(row, formulationIdx)),
			Weights:      make(map[int]*float64, len(days)),
		}
		if raw := strings.TrimSpace(cell(row, countIdx)); !naTokens[strings.ToLower(raw)] {
			n, err := parseInteger(raw)
			if err != nil {
				return nil, &ReshapeError{Row: rowNo, Column: ColSampleCount, Err: err}
			}
			rec.SampleCount = &n
		}
		for _, d := range days {
			w, err := parseWeight(cell(row, d.index))
			if err != nil {
				return nil, &ReshapeError{Row: rowNo, Column: d.name, Err: err}
			}
			rec.Weights[d.day] = w
		}
		records = append(records, rec)
	}
	return records, nil
}

// Reshape wandelt die Tabelle ins Long-Format, sortiert nach (Probe, WLD)
// und setzt avg_weight_loss je Gruppe.
func Reshape(t *Table, in ReshapeInput) ([]models.Observation, error) {
	records, err := WideRecords(t)
	if err != nil {
		return nil, err
	}
	obs := Melt(records, in)
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].GroupID != obs[j].GroupID {
			return obs[i].GroupID < obs[j].GroupID
		}
		return obs[i].WLD < obs[j].WLD
	})
	applyAvgWeightLoss(obs)
	return obs, nil
}

// Melt erzeugt je (Zeile, Tagesspalte) eine Observation, Tage aufsteigend.
func Melt(records []models.WideRecord, in ReshapeInput) []models.Observation {
	var out []models.Observation
	for _, rec := range records {
		days := make([]int, 0, len(rec.Weights))
		for d := range rec.Weights {
			days = append(days, d)
		}
		sort.Ints(days)
		for _, d := range days {
			out = append(out, models.Observation{
				GroupID:        rec.SampleNumber,
				FileCode:       in.FileCode,
				Filename:       in.Filename,
				Variety:        rec.Variety,
				Formulation:    rec.Formulation,
				SampleCount:    rec.SampleCount,
				UploadDate:     in.UploadDate,
				WLD:            d,
				Weight:         rec.Weights[d],
				DateDifference: in.UploadDate.AddDate(0, 0, -d),
			})
		}
	}
	return out
}

// AvgWeightLoss berechnet ((erstes - letztes) / erstes) * 100 / Gesamttage über die
// nicht-leeren Gewichte einer nach WLD sortierten Gruppe. Gesamttage = max WLD - min WLD + 1
// über alle Zeilen der Gruppe. Weniger als zwei Gewichte oder erstes Gewicht 0 ergeben nil.
func AvgWeightLoss(group []models.Observation) *float64 {
	if len(group) == 0 {
		return nil
	}
	var first, last float64
	n := 0
	minDay, maxDay := group[0].WLD, group[0].WLD
	for _, o := range group {
		minDay = min(minDay, o.WLD)
		maxDay = max(maxDay, o.WLD)
		if o.Weight == nil {
			continue
		}
		if n == 0 {
			first = *o.Weight
		}
		last = *o.Weight
		n++
	}
	if n < 2 || first == 0 {
		return nil
	}
	totalDays := float64(maxDay - minDay + 1)
	v := ((first - last) / first) * 100 / totalDays
	return &v
}

func applyAvgWeightLoss(obs []models.Observation) {
	for start := 0; start < len(obs); {
		end := start + 1
		for end < len(obs) && obs[end].GroupID == obs[start].GroupID {
			end++
		}
		avg := AvgWeightLoss(obs[start:end])
		for i := start; i < end; i++ {
			if avg != nil {
				v := *avg
				obs[i].AvgWeightLoss = &v
			} else {
				obs[i].AvgWeightLoss = nil
			}
		}
		start = end
	}
}

type metadataKey struct {
	filename, variety, formulation string
	sampleCount                    string
	uploadDate                     time.Time
	groupID                        int64
	fileCode                       string
}

// MetadataRecords dedupliziert die Observations zu Metadatenzeilen (Reihenfolge des ersten Auftretens).
func MetadataRecords(obs []models.Observation) []models.FileMetadata {
	seen := make(map[metadataKey]bool)
	var out []models.FileMetadata
	for _, o := range obs {
		k := metadataKey{o.Filename, o.Variety, o.Formulation, formatOptionalInt(o.SampleCount), o.UploadDate.UTC(), o.GroupID, o.FileCode}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, models.FileMetadata{
			Filename:        o.Filename,
			Variety:         o.Variety,
			Formulation:     o.Formulation,
			NumberOfSamples: o.SampleCount,
			UploadDate:      o.UploadDate,
			GroupID:         o.GroupID,
			FileCode:        o.FileCode,
			AvgWeightLoss:   o.AvgWeightLoss,
		})
	}
	return out
}

type weightKey struct {
	groupID  int64
	fileCode string
	wld      int
	weight   string
	dateDiff time.Time
}

// WeightRecords dedupliziert auf (group_id, file_code, WLD, Weight, DateDifference).
func WeightRecords(obs []models.Observation) []models.WeightLoss {
	seen := make(map[weightKey]bool)
	var out []models.WeightLoss
	for _, o := range obs {
		k := weightKey{o.GroupID, o.FileCode, o.WLD, formatOptionalFloat(o.Weight), o.DateDifference.UTC()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, models.WeightLoss{
			GroupID:        o.GroupID,
			FileCode:       o.FileCode,
			WLD:            o.WLD,
			Weight:         o.Weight,
			DateDifference: o.DateDifference,
		})
	}
	return out
}

// dayColumns normalisiert den Tag-0-Alias und liefert die Tagesspalten.
func dayColumns(header []string) ([]dayColumn, error) {
	var days []dayColumn
	seen := make(map[int]string)
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == dayZeroAlias {
			name = "WLD0"
		}
		m := dayColumnPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		day, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, &ReshapeError{Column: h, Err: fmt.Errorf("invalid day index: %w", err)}
		}
		if prev, dup := seen[day]; dup {
			return nil, &ReshapeError{Column: h, Err: fmt.Errorf("day %d already provided by column %q", day, prev)}
		}
		seen[day] = h
		days = append(days, dayColumn{index: i, day: day, name: h})
	}
	return days, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseWeight(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if naTokens[strings.ToLower(s)] {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("weight %q is not numeric", raw)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, fmt.Errorf("weight %q is not finite", raw)
	}
	return &v, nil
}

// parseInteger akzeptiert auch ganzzahlige Fließkommadarstellungen wie "12.0" (Excel-Export).
func parseInteger(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("value is empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return int64(f), nil
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return "<nil>"
	}
	return strconv.FormatInt(*v, 10)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "<nil>"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
