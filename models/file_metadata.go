package models

import (
	"time"
)

// FileMetadata beschreibt eine Probe (group_id) innerhalb einer Quelldatei.
// Eindeutigkeit über (group_id, file_code) wird beim Einfügen geprüft, nicht per Constraint.
type FileMetadata struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Filename        string    `json:"filename" gorm:"size:512;not null"`
	Variety         string    `json:"variety" gorm:"size:256"`
	Formulation     string    `json:"formulation" gorm:"size:256"`
	NumberOfSamples *int64    `json:"number_of_samples,omitempty" gorm:"column:number_of_samples"`
	UploadDate      time.Time `json:"upload_date" gorm:"not null"`
	GroupID         int64     `json:"group_id" gorm:"column:group_id;not null;index:idx_file_metadata_key"`
	FileCode        string    `json:"file_code" gorm:"column:file_code;size:64;not null;index:idx_file_metadata_key"`

	// Durchschnittlicher Gewichtsverlust der Gruppe in Prozent pro Tag (NULL, wenn nicht berechenbar)
	AvgWeightLoss *float64 `json:"avg_weight_loss,omitempty" gorm:"column:avg_weight_loss"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FileMetadata) TableName() string {
	return "file_metadata"
}
