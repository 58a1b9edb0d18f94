package models

import (
	"fmt"
	"sort"
	"time"
)

type Round struct {
	Number      int    `json:"number" yaml:"number" gorm:"primaryKey;autoIncrement:false"`
	Name        string `json:"name" yaml:"name" gorm:"not null"`
	MaxTeams    int    `json:"maxTeams" yaml:"max_teams" gorm:"not null;default:0"`
	Description string `json:"description" yaml:"description"`
}

// EventState is the single-row table holding the event's current round.
type EventState struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CurrentRound int       `json:"currentRound" gorm:"not null;default:1"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Countdown is the shared reveal timer for one round.
type Countdown struct {
	Round           int        `json:"round" gorm:"column:round_number;primaryKey;autoIncrement:false"`
	Active          bool       `json:"active" gorm:"not null;default:false"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds" gorm:"not null;default:3"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Deadline returns when the countdown reaches zero, or the zero time if it
// was never started.
func (c *Countdown) Deadline() time.Time {
	if c == nil || c.StartedAt == nil {
		return time.Time{}
	}
	return c.StartedAt.Add(time.Duration(c.DurationSeconds) * time.Second)
}

// ValidateRounds sorts rounds by number and checks they run 1..N without gaps.
func ValidateRounds(rounds []Round) error {
	if len(rounds) == 0 {
		return fmt.Errorf("at least one round is required")
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
	for i, r := range rounds {
		if r.Number != i+1 {
			return fmt.Errorf("round numbers must be contiguous from 1, found %d at position %d", r.Number, i+1)
		}
		if r.MaxTeams < 0 {
			return fmt.Errorf("round %d: max teams cannot be negative", r.Number)
		}
	}
	return nil
}
