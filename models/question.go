package models

import "time"

type Question struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	Round          int       `json:"round" gorm:"column:round_number;not null;index"`
	Text           string    `json:"question" gorm:"not null"`
	Description    string    `json:"description"`
	IsLocked       bool      `json:"isLocked" gorm:"not null;default:false;index"`
	AssignedTeamID *string   `json:"assignedToTeamId,omitempty" gorm:"size:64"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Unlock clears the lock and the team back-reference.
func (q *Question) Unlock() {
	q.IsLocked = false
	q.AssignedTeamID = nil
}
