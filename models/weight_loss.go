package models

import (
	"time"
)

// WeightLoss ist eine einzelne Gewichtsmessung einer Probe an einem Tag (Long-Format).
type WeightLoss struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	GroupID        int64     `json:"group_id" gorm:"column:group_id;not null;index:idx_weight_loss_key"`
	FileCode       string    `json:"file_code" gorm:"column:file_code;size:64;not null;index:idx_weight_loss_key"`
	WLD            int       `json:"wld" gorm:"column:wld;not null;index:idx_weight_loss_key"`
	Weight         *float64  `json:"weight" gorm:"column:weight"`
	DateDifference time.Time `json:"date_difference" gorm:"column:date_difference;not null"`
}

func (WeightLoss) TableName() string { return "weight_loss" }
