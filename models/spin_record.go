package models

import (
	"time"

	"gorm.io/datatypes"
)

// SpinRecord is an append-only history entry written after every successful spin.
type SpinRecord struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TeamID     string         `json:"teamId" gorm:"size:64;not null;index"`
	QuestionID string         `json:"questionId" gorm:"size:64;not null"`
	Round      int            `json:"round" gorm:"column:round_number;not null;index"`
	SpunAt     time.Time      `json:"spunAt" gorm:"not null"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
}
