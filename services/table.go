package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Spaltennamen der Rohdateien (exakt, Groß-/Kleinschreibung relevant).
const (
	ColSampleNumber = "Sample Number"
	ColVariety      = "Variety"
	ColFormulation  = "Formulation"
	ColSampleCount  = "Number of Samples"
)

// Table ist eine geparste Rohdatei im Wide-Format, Zellen noch untypisiert.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseTable liest CSV-Bytes. Kopfzellen werden getrimmt (inkl. UTF-8-BOM),
// vollständig leere Zeilen werden übersprungen.
func ParseTable(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blankRow(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Index gibt die Position der Spalte oder -1 zurück.
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
