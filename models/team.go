package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Team struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:64"`
	Name               string     `json:"name" gorm:"size:128;not null"`
	NameKey            string     `json:"-" gorm:"size:128;uniqueIndex;not null"`
	Round              int        `json:"round" gorm:"column:round_number;not null;index"`
	HasSpun            bool       `json:"hasSpun" gorm:"not null;default:false"`
	AssignedQuestionID *string    `json:"assignedQuestionId,omitempty" gorm:"size:64"`
	AssignedAt         *time.Time `json:"assignedAt,omitempty"`
	Marks              *int       `json:"marks,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// BeforeSave keeps the case-insensitive lookup key in sync with Name.
func (t *Team) BeforeSave(tx *gorm.DB) error {
	t.NameKey = NameKey(t.Name)
	return nil
}

// NameKey is the comparison form used for team names and the admin identifier.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClearAssignment drops the spin state of the team. Marks are untouched.
func (t *Team) ClearAssignment() {
	t.HasSpun = false
	t.AssignedQuestionID = nil
	t.AssignedAt = nil
}
