package services

import (
	"fmt"
	"strings"
)

// RequiredColumns muss jede Rohdatei enthalten.
var RequiredColumns = []string{ColSampleNumber, ColVariety, ColFormulation, ColSampleCount}

// ValidationError beschreibt, warum eine Datei abgelehnt wurde.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("file %s rejected: %s", e.Filename, e.Reason)
}

// Validator prüft Dateiname und Kopfzeile einer Rohdatei. Reine Entscheidungsfunktion.
type Validator struct {
	RequiredColumns []string
}

// NewValidator erstellt einen Validator mit den Standard-Pflichtspalten.
func NewValidator() *Validator {
	return &Validator{RequiredColumns: RequiredColumns}
}

// Validate liefert den file_code oder einen *ValidationError.
func (v *Validator) Validate(header []string, filename string) (string, error) {
	code, err := ExtractFileCode(filename)
	if err != nil {
		return "", err
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range v.RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return "", &ValidationError{Filename: filename, Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}
	return code, nil
}

// ExtractFileCode liefert die führende Ziffernfolge des Basisnamens.
// "InputFiles/123_sample.csv" -> "123"; Namen ohne führende Ziffer werden abgelehnt.
func ExtractFileCode(filename string) (string, error) {
	base := BaseName(filename)
	end := 0
	for end < len(base) && base[end] >= '0' && base[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", &ValidationError{Filename: filename, Reason: "file name does not start with a numeric file code"}
	}
	return base[:end], nil
}

// BaseName entfernt alle Pfadanteile ("/" und "\").
func BaseName(key string) string {
	if i := strings.LastIndexAny(key, `/\`); i >= 0 {
		return key[i+1:]
	}
	return key
}
