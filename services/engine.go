package services

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"uxcellence/models"
)

const (
	PhaseEmpty       = "empty"
	PhaseSpinning    = "spinning"
	PhaseAllAssigned = "all_assigned"
)

type EngineOptions struct {
	// AdminName is reserved and cannot be used as a team name.
	AdminName       string
	EnforceCapacity bool
	Clock           clockwork.Clock
	// Pick returns an index in [0, n). Defaults to a uniform random choice.
	Pick func(n int) int
}

// Engine owns the round and assignment rules. All state lives in the Store.
type Engine struct {
	store           Store
	publisher       Publisher
	adminKey        string
	enforceCapacity bool
	clock           clockwork.Clock
	pick            func(n int) int
	onRoundAssigned func(ctx context.Context, round int)
}

func NewEngine(store Store, publisher Publisher, opts EngineOptions) *Engine {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	return &Engine{
		store:           store,
		publisher:       publisher,
		adminKey:        models.NameKey(opts.AdminName),
		enforceCapacity: opts.EnforceCapacity,
		clock:           opts.Clock,
		pick:            opts.Pick,
	}
}

// OnRoundAssigned registers a callback run after the spin that gives every
// team of a round its question.
func (e *Engine) OnRoundAssigned(fn func(ctx context.Context, round int)) {
	e.onRoundAssigned = fn
}

type CreateTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateQuestionRequest struct {
	Question    string `json:"question" binding:"required"`
	Description string `json:"description"`
	Round       int    `json:"round" binding:"required,min=1"`
}

type RoundStatus struct {
	Round             int    `json:"round"`
	Name              string `json:"name"`
	Phase             string `json:"phase"`
	Current           bool   `json:"current"`
	Final             bool   `json:"final"`
	Teams             int    `json:"teams"`
	Spun              int    `json:"spun"`
	UnlockedQuestions int    `json:"unlockedQuestions"`
	MaxTeams          int    `json:"maxTeams"`
}

func (e *Engine) State(ctx context.Context) (*models.State, error) {
	return e.store.State(ctx)
}

func (e *Engine) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if e.adminKey != "" && models.NameKey(name) == e.adminKey {
		return nil, ErrReservedName
	}

	state, err := e.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if e.enforceCapacity {
		if round, ok := state.FindRound(state.CurrentRound); ok && round.MaxTeams > 0 &&
			len(state.TeamsInRound(state.CurrentRound)) >= round.MaxTeams {
			return nil, ErrRoundFull
		}
	}

	team := &models.Team{
		ID:    uuid.NewString(),
		Name:  name,
		Round: state.CurrentRound,
	}
	if err := e.store.InsertTeam(ctx, team); err != nil {
		return nil, err
	}

	log.Info().Str("team_id", team.ID).Str("name", team.Name).Int("round", team.Round).Msg("team created")
	e.publish(ctx, EventTeamCreated, team.Round, team)
	return team, nil
}

// DeleteTeam removes the team and releases any question it held.
func (e *Engine) DeleteTeam(ctx context.Context, teamID string) error {
	team, err := e.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteTeam(ctx, teamID); err != nil {
		return err
	}

	log.Info().Str("team_id", teamID).Int("round", team.Round).Msg("team deleted")
	e.publish(ctx, EventTeamDeleted, team.Round, fields{"teamId": teamID})
	return nil
}

func (e *Engine) CreateQuestion(ctx context.Context, text, description string, round int) (*models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}
	state, err := e.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state.FindRound(round); !ok {
		return nil, ErrRoundNotFound
	}

	question := &models.Question{
		ID:          uuid.NewString(),
		Round:       round,
		Text:        text,
		Description: strings.TrimSpace(description),
	}
	if err := e.store.InsertQuestion(ctx, question); err != nil {
		return nil, err
	}

	log.Info().Str("question_id", question.ID).Int("round", round).Msg("question created")
	e.publish(ctx, EventQuestionCreated, round, fields{"questionId": question.ID})
	return question, nil
}

func (e *Engine) DeleteQuestion(ctx context.Context, questionID string) error {
	question, err := e.store.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if question.IsLocked {
		return ErrLockedQuestion
	}
	if err := e.store.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}

	log.Info().Str("question_id", questionID).Int("round", question.Round).Msg("question deleted")
	e.publish(ctx, EventQuestionDeleted, question.Round, fields{"questionId": questionID})
	return nil
}

// Spin claims a random unlocked question of the team's round for the team.
// A lost race for the chosen question surfaces as ErrQuestionAlreadyLocked.
func (e *Engine) Spin(ctx context.Context, teamID string) (*models.Question, error) {
	state, err := e.store.State(ctx)
	if err != nil {
		return nil, err
	}
	team, ok := state.FindTeam(teamID)
	if !ok {
		return nil, ErrTeamNotFound
	}
	if team.HasSpun {
		return nil, ErrAlreadySpun
	}

	var candidates []models.Question
	for _, q := range state.QuestionsInRound(team.Round) {
		if !q.IsLocked {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoQuestionsAvailable
	}
	chosen := candidates[e.pick(len(candidates))]

	if err := e.store.ClaimQuestion(ctx, chosen.ID, team.ID); err != nil {
		if KindOf(err) == KindConflict {
			log.Warn().Str("team_id", team.ID).Str("question_id", chosen.ID).Msg("spin lost race for question")
		}
		return nil, err
	}

	now := e.clock.Now().UTC()
	if err := e.store.MarkSpun(ctx, team.ID, chosen.ID, now); err != nil {
		if rerr := e.store.ReleaseQuestion(ctx, chosen.ID); rerr != nil {
			log.Error().Err(rerr).Str("question_id", chosen.ID).Msg("failed to release question after spin failure")
		}
		return nil, err
	}

	teamRef := team.ID
	chosen.IsLocked = true
	chosen.AssignedTeamID = &teamRef

	e.recordSpin(ctx, team, &chosen, now)
	log.Info().Str("team_id", team.ID).Str("question_id", chosen.ID).Int("round", team.Round).Msg("team spun")
	e.publish(ctx, EventTeamSpun, team.Round, fields{"teamId": team.ID, "teamName": team.Name, "questionId": chosen.ID})

	if e.onRoundAssigned != nil && e.roundAssigned(ctx, team.Round) {
		e.onRoundAssigned(ctx, team.Round)
	}
	return &chosen, nil
}

func (e *Engine) recordSpin(ctx context.Context, team *models.Team, question *models.Question, at time.Time) {
	payload, err := json.Marshal(fields{"teamName": team.Name, "question": question.Text})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode spin payload")
	}
	record := &models.SpinRecord{
		TeamID:     team.ID,
		QuestionID: question.ID,
		Round:      team.Round,
		SpunAt:     at,
		Payload:    datatypes.JSON(payload),
	}
	if err := e.store.AppendSpin(ctx, record); err != nil {
		log.Error().Err(err).Str("team_id", team.ID).Msg("failed to append spin history")
	}
}

func (e *Engine) roundAssigned(ctx context.Context, round int) bool {
	state, err := e.store.State(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload state after spin")
		return false
	}
	status := roundStatus(state, round)
	return status.Phase == PhaseAllAssigned
}

// AdvanceRound keeps the selected teams, moving them to the next round, and
// deletes every other team of the current round. It returns the new round.
func (e *Engine) AdvanceRound(ctx context.Context, selected []string) (int, error) {
	if len(selected) == 0 {
		return 0, ErrNoSelection
	}
	state, err := e.store.State(ctx)
	if err != nil {
		return 0, err
	}
	current := state.CurrentRound
	if current >= state.FinalRound() {
		return 0, ErrFinalRound
	}

	teams := state.TeamsInRound(current)
	inRound := make(map[string]bool, len(teams))
	for _, t := range teams {
		inRound[t.ID] = true
	}
	for _, id := range selected {
		if !inRound[id] {
			return 0, ErrTeamNotFound
		}
	}
	for _, t := range teams {
		if !t.HasSpun || t.AssignedQuestionID == nil {
			return 0, ErrRoundIncomplete
		}
	}

	if err := e.store.AdvanceRound(ctx, current, selected); err != nil {
		return 0, err
	}

	promoted := keepSet(selected)
	log.Info().
		Int("from", current).
		Int("to", current+1).
		Int("promoted", len(promoted)).
		Int("eliminated", len(teams)-len(promoted)).
		Msg("round advanced")
	e.publish(ctx, EventRoundAdvanced, current+1, fields{"from": current, "to": current + 1, "teamIds": selected})
	return current + 1, nil
}

func (e *Engine) ResetRound(ctx context.Context, round int) error {
	if err := e.requireRound(ctx, round); err != nil {
		return err
	}
	if err := e.store.ResetRound(ctx, round); err != nil {
		return err
	}
	log.Info().Int("round", round).Msg("round reset")
	e.publish(ctx, EventRoundReset, round, fields{"round": round})
	return nil
}

func (e *Engine) ResetAll(ctx context.Context) error {
	if err := e.store.ResetAll(ctx); err != nil {
		return err
	}
	log.Info().Msg("game reset")
	e.publish(ctx, EventGameReset, 1, fields{"currentRound": 1})
	return nil
}

// RecordMarks overwrites the marks and reason of a team. Nil marks clears them.
func (e *Engine) RecordMarks(ctx context.Context, teamID string, marks *int, reason string) error {
	if marks != nil && (*marks < 0 || *marks > 100) {
		return ErrInvalidMarks
	}
	team, err := e.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := e.store.SetMarks(ctx, teamID, marks, strings.TrimSpace(reason)); err != nil {
		return err
	}
	log.Info().Str("team_id", teamID).Msg("marks recorded")
	e.publish(ctx, EventMarksRecorded, team.Round, fields{"teamId": teamID})
	return nil
}

func (e *Engine) UpdateRoundCapacity(ctx context.Context, round, maxTeams int) error {
	if maxTeams < 0 {
		return ErrInvalidCapacity
	}
	if err := e.store.UpdateRoundCapacity(ctx, round, maxTeams); err != nil {
		return err
	}
	log.Info().Int("round", round).Int("max_teams", maxTeams).Msg("round capacity updated")
	e.publish(ctx, EventRoundUpdated, round, fields{"round": round, "maxTeams": maxTeams})
	return nil
}

// Assignments lists the team/question bindings of a round in team order.
func (e *Engine) Assignments(ctx context.Context, round int) ([]models.Assignment, error) {
	state, err := e.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if round == 0 {
		round = state.CurrentRound
	}
	return assignments(state, round), nil
}

func assignments(state *models.State, round int) []models.Assignment {
	result := []models.Assignment{}
	for _, t := range state.TeamsInRound(round) {
		if t.AssignedQuestionID == nil {
			continue
		}
		a := models.Assignment{
			TeamID:     t.ID,
			TeamName:   t.Name,
			QuestionID: *t.AssignedQuestionID,
			Round:      round,
			AssignedAt: t.AssignedAt,
		}
		if q, ok := state.FindQuestion(*t.AssignedQuestionID); ok {
			a.Question = q.Text
		}
		result = append(result, a)
	}
	return result
}

func (e *Engine) SpinHistory(ctx context.Context, round int) ([]models.SpinRecord, error) {
	if err := e.requireRound(ctx, round); err != nil {
		return nil, err
	}
	return e.store.ListSpins(ctx, round)
}

func (e *Engine) RoundStatus(ctx context.Context, round int) (*RoundStatus, error) {
	state, err := e.store.State(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state.FindRound(round); !ok {
		return nil, ErrRoundNotFound
	}
	status := roundStatus(state, round)
	return &status, nil
}

func roundStatus(state *models.State, round int) RoundStatus {
	status := RoundStatus{
		Round:   round,
		Current: state.CurrentRound == round,
		Final:   round == state.FinalRound(),
	}
	if r, ok := state.FindRound(round); ok {
		status.Name = r.Name
		status.MaxTeams = r.MaxTeams
	}
	for _, t := range state.TeamsInRound(round) {
		status.Teams++
		if t.HasSpun {
			status.Spun++
		}
	}
	for _, q := range state.QuestionsInRound(round) {
		if !q.IsLocked {
			status.UnlockedQuestions++
		}
	}

	switch {
	case status.Spun == 0:
		status.Phase = PhaseEmpty
	case status.Spun == status.Teams:
		status.Phase = PhaseAllAssigned
	default:
		status.Phase = PhaseSpinning
	}
	return status
}

// ReplaceTeams stores a full team list. Missing ids are generated.
func (e *Engine) ReplaceTeams(ctx context.Context, teams []models.Team) error {
	for i := range teams {
		teams[i].Name = strings.TrimSpace(teams[i].Name)
		if teams[i].Name == "" {
			return ErrEmptyName
		}
		if e.adminKey != "" && models.NameKey(teams[i].Name) == e.adminKey {
			return ErrReservedName
		}
		if teams[i].ID == "" {
			teams[i].ID = uuid.NewString()
		}
		if teams[i].Round == 0 {
			teams[i].Round = 1
		}
		if !teams[i].HasSpun {
			teams[i].ClearAssignment()
		}
	}
	if err := e.store.ReplaceTeams(ctx, teams); err != nil {
		return err
	}
	e.publish(ctx, EventStateReplaced, 0, fields{"key": "teams"})
	return nil
}

func (e *Engine) ReplaceQuestions(ctx context.Context, questions []models.Question) error {
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
		if questions[i].Round == 0 {
			questions[i].Round = 1
		}
		if questions[i].AssignedTeamID == nil {
			questions[i].IsLocked = false
		}
	}
	if err := e.store.ReplaceQuestions(ctx, questions); err != nil {
		return err
	}
	e.publish(ctx, EventStateReplaced, 0, fields{"key": "questions"})
	return nil
}

func (e *Engine) ReplaceRounds(ctx context.Context, rounds []models.Round) error {
	if err := models.ValidateRounds(rounds); err != nil {
		return &Error{Kind: KindValidation, Message: ErrInvalidRound.Message, Err: err}
	}
	if err := e.store.ReplaceRounds(ctx, rounds); err != nil {
		return err
	}
	e.publish(ctx, EventStateReplaced, 0, fields{"key": "rounds"})
	return nil
}

func (e *Engine) SetCurrentRound(ctx context.Context, round int) error {
	if err := e.requireRound(ctx, round); err != nil {
		return err
	}
	if err := e.store.SetCurrentRound(ctx, round); err != nil {
		return err
	}
	e.publish(ctx, EventStateReplaced, round, fields{"key": "currentRound"})
	return nil
}

func (e *Engine) requireRound(ctx context.Context, round int) error {
	state, err := e.store.State(ctx)
	if err != nil {
		return err
	}
	if _, ok := state.FindRound(round); !ok {
		return ErrRoundNotFound
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, eventType string, round int, payload interface{}) {
	event := Event{Type: eventType, Round: round, Payload: payload, At: e.clock.Now().UTC()}
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to publish event")
	}
}

// fields is a shorthand for event payload maps.
type fields map[string]interface{}
