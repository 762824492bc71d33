package models

import "time"

// SourceFile ist eine Kandidatendatei im Eingangsbereich des Object Stores.
type SourceFile struct {
	Key          string
	Size         int64
	LastModified time.Time
}
