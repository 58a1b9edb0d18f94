package services

import (
	"context"
	"time"

	"uxcellence/models"
)

// Store is the persistence boundary of the event. Implementations must make
// ClaimQuestion, MarkSpun, DeleteQuestion and AdvanceRound atomic with
// respect to concurrent callers.
type Store interface {
	State(ctx context.Context) (*models.State, error)

	ReplaceTeams(ctx context.Context, teams []models.Team) error
	ReplaceQuestions(ctx context.Context, questions []models.Question) error
	ReplaceRounds(ctx context.Context, rounds []models.Round) error
	SetCurrentRound(ctx context.Context, round int) error

	GetTeam(ctx context.Context, id string) (*models.Team, error)
	FindTeamByName(ctx context.Context, name string) (*models.Team, error)
	InsertTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, id string) error
	MarkSpun(ctx context.Context, teamID, questionID string, at time.Time) error
	SetMarks(ctx context.Context, teamID string, marks *int, reason string) error

	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	InsertQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ClaimQuestion(ctx context.Context, questionID, teamID string) error
	ReleaseQuestion(ctx context.Context, questionID string) error

	AdvanceRound(ctx context.Context, from int, keep []string) error
	ResetRound(ctx context.Context, round int) error
	ResetAll(ctx context.Context) error
	UpdateRoundCapacity(ctx context.Context, round, maxTeams int) error

	GetCountdown(ctx context.Context, round int) (*models.Countdown, error)
	SaveCountdown(ctx context.Context, countdown *models.Countdown) error

	AppendSpin(ctx context.Context, record *models.SpinRecord) error
	ListSpins(ctx context.Context, round int) ([]models.SpinRecord, error)

	FindAdmin(ctx context.Context, name string) (*models.AdminUser, error)
	UpsertAdmin(ctx context.Context, admin *models.AdminUser) error
}

// keepSet turns a selection of team ids into a lookup set.
func keepSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
