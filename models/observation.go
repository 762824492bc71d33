package models

import "time"

// WideRecord ist eine Zeile der Rohtabelle. Weights ist nach Tagesindex (WLD) geschlüsselt,
// nil-Werte sind leere Zellen.
type WideRecord struct {
	SampleNumber int64
	Variety      string
	Formulation  string
	SampleCount  *int64
	Weights      map[int]*float64
}

// Observation ist eine (Probe, Tag)-Zeile nach dem Melt.
type Observation struct {
	GroupID        int64
	FileCode       string
	Filename       string
	Variety        string
	Formulation    string
	SampleCount    *int64
	UploadDate     time.Time
	WLD            int
	Weight         *float64
	DateDifference time.Time
	AvgWeightLoss  *float64
}
