package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"uxcellence/models"
)

const (
	keyTeams        = "teams"
	keyQuestions    = "questions"
	keyCurrentRound = "currentRound"
	keyRounds       = "rounds"
	keySpins        = "spins"
	keySpinSeq      = "spins:seq"
	keyAdmins       = "admins"

	maxTxRetries = 100
)

// RedisStore keeps the event as four JSON blobs replaced wholesale on write.
// Mutations run inside WATCH/MULTI so a concurrent writer forces a re-read.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	defaultRounds []models.Round
}

func NewRedisStore(client *redis.Client, prefix string, defaultRounds []models.Round) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, defaultRounds: defaultRounds}
}

type blobSnapshot struct {
	teams        []models.Team
	questions    []models.Question
	currentRound int
	rounds       []models.Round
	dirty        map[string]bool
}

func (b *blobSnapshot) touch(keys ...string) {
	for _, k := range keys {
		b.dirty[k] = true
	}
}

func (b *blobSnapshot) team(id string) *models.Team {
	for i := range b.teams {
		if b.teams[i].ID == id {
			return &b.teams[i]
		}
	}
	return nil
}

func (b *blobSnapshot) question(id string) *models.Question {
	for i := range b.questions {
		if b.questions[i].ID == id {
			return &b.questions[i]
		}
	}
	return nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) countdownKey(round int) string {
	return s.key("countdown:" + strconv.Itoa(round))
}

func (s *RedisStore) blobKeys() []string {
	return []string{s.key(keyTeams), s.key(keyQuestions), s.key(keyCurrentRound), s.key(keyRounds)}
}

func (s *RedisStore) readSnapshot(ctx context.Context, cmd redis.Cmdable) (*blobSnapshot, error) {
	values, err := cmd.MGet(ctx, s.blobKeys()...).Result()
	if err != nil {
		return nil, err
	}

	snap := &blobSnapshot{
		teams:        []models.Team{},
		questions:    []models.Question{},
		currentRound: 1,
		dirty:        make(map[string]bool),
	}
	if _, err := decodeBlob(values[0], &snap.teams); err != nil {
		return nil, fmt.Errorf("decode teams: %w", err)
	}
	if _, err := decodeBlob(values[1], &snap.questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if _, err := decodeBlob(values[2], &snap.currentRound); err != nil {
		return nil, fmt.Errorf("decode current round: %w", err)
	}
	found, err := decodeBlob(values[3], &snap.rounds)
	if err != nil {
		return nil, fmt.Errorf("decode rounds: %w", err)
	}
	if !found || len(snap.rounds) == 0 {
		snap.rounds = append([]models.Round(nil), s.defaultRounds...)
	}
	return snap, nil
}

func (s *RedisStore) writeSnapshot(ctx context.Context, pipe redis.Pipeliner, snap *blobSnapshot) error {
	values := map[string]interface{}{
		keyTeams:        snap.teams,
		keyQuestions:    snap.questions,
		keyCurrentRound: snap.currentRound,
		keyRounds:       snap.rounds,
	}
	for name, value := range values {
		if !snap.dirty[name] {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		pipe.Set(ctx, s.key(name), data, 0)
	}
	return nil
}

// mutate runs fn against a watched snapshot and writes back the touched keys.
// extra, when set, queues further commands into the same MULTI block.
func (s *RedisStore) mutate(ctx context.Context, op string, fn func(snap *blobSnapshot) error, extra func(pipe redis.Pipeliner)) error {
	txf := func(tx *redis.Tx) error {
		snap, err := s.readSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := s.writeSnapshot(ctx, pipe, snap); err != nil {
				return err
			}
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.blobKeys()...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return TransportError(op, err)
	}
	return TransportError(op, fmt.Errorf("gave up after %d optimistic retries", maxTxRetries))
}

func (s *RedisStore) State(ctx context.Context) (*models.State, error) {
	snap, err := s.readSnapshot(ctx, s.client)
	if err != nil {
		return nil, TransportError("load state", err)
	}
	return &models.State{
		Teams:        snap.teams,
		Questions:    snap.questions,
		CurrentRound: snap.currentRound,
		Rounds:       snap.rounds,
	}, nil
}

func (s *RedisStore) ReplaceTeams(ctx context.Context, teams []models.Team) error {
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		key := models.NameKey(t.Name)
		if seen[key] {
			return ErrDuplicateName
		}
		seen[key] = true
	}
	return s.mutate(ctx, "replace teams", func(snap *blobSnapshot) error {
		snap.teams = append([]models.Team{}, teams...)
		snap.touch(keyTeams)
		return nil
	}, nil)
}

func (s *RedisStore) ReplaceQuestions(ctx context.Context, questions []models.Question) error {
	return s.mutate(ctx, "replace questions", func(snap *blobSnapshot) error {
		snap.questions = append([]models.Question{}, questions...)
		snap.touch(keyQuestions)
		return nil
	}, nil)
}

func (s *RedisStore) ReplaceRounds(ctx context.Context, rounds []models.Round) error {
	return s.mutate(ctx, "replace rounds", func(snap *blobSnapshot) error {
		snap.rounds = append([]models.Round{}, rounds...)
		snap.touch(keyRounds)
		return nil
	}, nil)
}

func (s *RedisStore) SetCurrentRound(ctx context.Context, round int) error {
	return s.mutate(ctx, "set current round", func(snap *blobSnapshot) error {
		snap.currentRound = round
		snap.touch(keyCurrentRound)
		return nil
	}, nil)
}

func (s *RedisStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	team, ok := state.FindTeam(id)
	if !ok {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

func (s *RedisStore) FindTeamByName(ctx context.Context, name string) (*models.Team, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	key := models.NameKey(name)
	for i := range state.Teams {
		if models.NameKey(state.Teams[i].Name) == key {
			return &state.Teams[i], nil
		}
	}
	return nil, ErrTeamNotFound
}

func (s *RedisStore) InsertTeam(ctx context.Context, team *models.Team) error {
	now := time.Now().UTC()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now
	return s.mutate(ctx, "insert team", func(snap *blobSnapshot) error {
		key := models.NameKey(team.Name)
		for _, existing := range snap.teams {
			if models.NameKey(existing.Name) == key {
				return ErrDuplicateName
			}
		}
		snap.teams = append(snap.teams, *team)
		snap.touch(keyTeams)
		return nil
	}, nil)
}

func (s *RedisStore) DeleteTeam(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete team", func(snap *blobSnapshot) error {
		kept := snap.teams[:0]
		found := false
		for _, t := range snap.teams {
			if t.ID == id {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return ErrTeamNotFound
		}
		snap.teams = kept
		for i := range snap.questions {
			if q := &snap.questions[i]; q.AssignedTeamID != nil && *q.AssignedTeamID == id {
				q.Unlock()
			}
		}
		snap.touch(keyTeams, keyQuestions)
		return nil
	}, nil)
}

func (s *RedisStore) MarkSpun(ctx context.Context, teamID, questionID string, at time.Time) error {
	return s.mutate(ctx, "mark team spun", func(snap *blobSnapshot) error {
		team := snap.team(teamID)
		if team == nil {
			return ErrTeamNotFound
		}
		if team.HasSpun {
			return ErrAlreadySpun
		}
		qid := questionID
		assignedAt := at
		team.HasSpun = true
		team.AssignedQuestionID = &qid
		team.AssignedAt = &assignedAt
		team.UpdatedAt = at
		snap.touch(keyTeams)
		return nil
	}, nil)
}

func (s *RedisStore) SetMarks(ctx context.Context, teamID string, marks *int, reason string) error {
	return s.mutate(ctx, "set marks", func(snap *blobSnapshot) error {
		team := snap.team(teamID)
		if team == nil {
			return ErrTeamNotFound
		}
		team.Marks = marks
		team.Reason = reason
		team.UpdatedAt = time.Now().UTC()
		snap.touch(keyTeams)
		return nil
	}, nil)
}

func (s *RedisStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	question, ok := state.FindQuestion(id)
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

func (s *RedisStore) InsertQuestion(ctx context.Context, question *models.Question) error {
	now := time.Now().UTC()
	if question.CreatedAt.IsZero() {
		question.CreatedAt = now
	}
	question.UpdatedAt = now
	return s.mutate(ctx, "insert question", func(snap *blobSnapshot) error {
		snap.questions = append(snap.questions, *question)
		snap.touch(keyQuestions)
		return nil
	}, nil)
}

func (s *RedisStore) DeleteQuestion(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete question", func(snap *blobSnapshot) error {
		for i, q := range snap.questions {
			if q.ID != id {
				continue
			}
			if q.IsLocked {
				return ErrLockedQuestion
			}
			snap.questions = append(snap.questions[:i], snap.questions[i+1:]...)
			snap.touch(keyQuestions)
			return nil
		}
		return ErrQuestionNotFound
	}, nil)
}

func (s *RedisStore) ClaimQuestion(ctx context.Context, questionID, teamID string) error {
	return s.mutate(ctx, "claim question", func(snap *blobSnapshot) error {
		question := snap.question(questionID)
		if question == nil {
			return ErrQuestionNotFound
		}
		if question.IsLocked {
			return ErrQuestionAlreadyLocked
		}
		tid := teamID
		question.IsLocked = true
		question.AssignedTeamID = &tid
		question.UpdatedAt = time.Now().UTC()
		snap.touch(keyQuestions)
		return nil
	}, nil)
}

func (s *RedisStore) ReleaseQuestion(ctx context.Context, questionID string) error {
	return s.mutate(ctx, "release question", func(snap *blobSnapshot) error {
		question := snap.question(questionID)
		if question == nil {
			return nil
		}
		question.Unlock()
		snap.touch(keyQuestions)
		return nil
	}, nil)
}

func (s *RedisStore) AdvanceRound(ctx context.Context, from int, keep []string) error {
	selected := keepSet(keep)
	return s.mutate(ctx, "advance round", func(snap *blobSnapshot) error {
		if snap.currentRound != from {
			return ErrRoundChanged
		}
		found := 0
		for _, t := range snap.teams {
			if t.Round != from {
				continue
			}
			if selected[t.ID] {
				found++
			}
		}
		if found != len(selected) {
			return ErrTeamNotFound
		}
		for _, t := range snap.teams {
			if t.Round == from && (!t.HasSpun || t.AssignedQuestionID == nil) {
				return ErrRoundIncomplete
			}
		}
		teams := make([]models.Team, 0, len(snap.teams))
		for _, t := range snap.teams {
			if t.Round != from {
				teams = append(teams, t)
				continue
			}
			if !selected[t.ID] {
				continue
			}
			t.Round = from + 1
			t.ClearAssignment()
			teams = append(teams, t)
		}
		snap.teams = teams
		for i := range snap.questions {
			if snap.questions[i].Round == from {
				snap.questions[i].Unlock()
			}
		}
		snap.currentRound = from + 1
		snap.touch(keyTeams, keyQuestions, keyCurrentRound)
		return nil
	}, nil)
}

func (s *RedisStore) ResetRound(ctx context.Context, round int) error {
	err := s.mutate(ctx, "reset round", func(snap *blobSnapshot) error {
		for i := range snap.teams {
			if snap.teams[i].Round == round {
				snap.teams[i].ClearAssignment()
			}
		}
		for i := range snap.questions {
			if snap.questions[i].Round == round {
				snap.questions[i].Unlock()
			}
		}
		snap.touch(keyTeams, keyQuestions)
		return nil
	}, nil)
	if err != nil {
		return err
	}
	return s.rewriteSpins(ctx, func(rec models.SpinRecord) bool { return rec.Round != round })
}

func (s *RedisStore) ResetAll(ctx context.Context) error {
	var countdownKeys []string
	err := s.mutate(ctx, "reset all", func(snap *blobSnapshot) error {
		for i := range snap.teams {
			t := &snap.teams[i]
			t.Round = 1
			t.ClearAssignment()
			t.Marks = nil
			t.Reason = ""
		}
		for i := range snap.questions {
			snap.questions[i].Unlock()
		}
		snap.currentRound = 1
		countdownKeys = countdownKeys[:0]
		for _, r := range snap.rounds {
			countdownKeys = append(countdownKeys, s.countdownKey(r.Number))
		}
		snap.touch(keyTeams, keyQuestions, keyCurrentRound)
		return nil
	}, func(pipe redis.Pipeliner) {
		if len(countdownKeys) > 0 {
			pipe.Del(ctx, countdownKeys...)
		}
		pipe.Del(ctx, s.key(keySpins))
	})
	return err
}

func (s *RedisStore) UpdateRoundCapacity(ctx context.Context, round, maxTeams int) error {
	return s.mutate(ctx, "update round capacity", func(snap *blobSnapshot) error {
		for i := range snap.rounds {
			if snap.rounds[i].Number == round {
				snap.rounds[i].MaxTeams = maxTeams
				snap.touch(keyRounds)
				return nil
			}
		}
		return ErrRoundNotFound
	}, nil)
}

func (s *RedisStore) GetCountdown(ctx context.Context, round int) (*models.Countdown, error) {
	countdown := &models.Countdown{Round: round}
	data, err := s.client.Get(ctx, s.countdownKey(round)).Result()
	if err == redis.Nil {
		return countdown, nil
	}
	if err != nil {
		return nil, TransportError("load countdown", err)
	}
	if err := json.Unmarshal([]byte(data), countdown); err != nil {
		return nil, TransportError("decode countdown", err)
	}
	return countdown, nil
}

func (s *RedisStore) SaveCountdown(ctx context.Context, countdown *models.Countdown) error {
	countdown.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(countdown)
	if err != nil {
		return fmt.Errorf("failed to marshal countdown: %w", err)
	}
	return TransportError("save countdown", s.client.Set(ctx, s.countdownKey(countdown.Round), data, 0).Err())
}

func (s *RedisStore) AppendSpin(ctx context.Context, record *models.SpinRecord) error {
	id, err := s.client.Incr(ctx, s.key(keySpinSeq)).Result()
	if err != nil {
		return TransportError("allocate spin id", err)
	}
	record.ID = uint(id)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal spin record: %w", err)
	}
	return TransportError("append spin", s.client.RPush(ctx, s.key(keySpins), data).Err())
}

func (s *RedisStore) ListSpins(ctx context.Context, round int) ([]models.SpinRecord, error) {
	all, err := s.loadSpins(ctx, s.client)
	if err != nil {
		return nil, TransportError("list spins", err)
	}
	records := []models.SpinRecord{}
	for _, rec := range all {
		if rec.Round == round {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *RedisStore) loadSpins(ctx context.Context, cmd redis.Cmdable) ([]models.SpinRecord, error) {
	raw, err := cmd.LRange(ctx, s.key(keySpins), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]models.SpinRecord, 0, len(raw))
	for _, item := range raw {
		var rec models.SpinRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode spin record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) rewriteSpins(ctx context.Context, keep func(models.SpinRecord) bool) error {
	key := s.key(keySpins)
	txf := func(tx *redis.Tx) error {
		records, err := s.loadSpins(ctx, tx)
		if err != nil {
			return err
		}
		var kept []interface{}
		for _, rec := range records {
			if !keep(rec) {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			kept = append(kept, data)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(kept) > 0 {
				pipe.RPush(ctx, key, kept...)
			}
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return TransportError("rewrite spins", err)
	}
	return TransportError("rewrite spins", redis.TxFailedErr)
}

func (s *RedisStore) FindAdmin(ctx context.Context, name string) (*models.AdminUser, error) {
	data, err := s.client.HGet(ctx, s.key(keyAdmins), models.NameKey(name)).Result()
	if err == redis.Nil {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, TransportError("find admin", err)
	}
	var stored storedAdmin
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, TransportError("decode admin", err)
	}
	return &models.AdminUser{
		ID:           stored.ID,
		Name:         stored.Name,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}

func (s *RedisStore) UpsertAdmin(ctx context.Context, admin *models.AdminUser) error {
	admin.Name = models.NameKey(admin.Name)
	now := time.Now().UTC()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = now
	}
	admin.UpdatedAt = now
	// PasswordHash is excluded from the public JSON form, so store a private shape.
	data, err := json.Marshal(storedAdmin{
		ID:           admin.ID,
		Name:         admin.Name,
		PasswordHash: admin.PasswordHash,
		CreatedAt:    admin.CreatedAt,
		UpdatedAt:    admin.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal admin: %w", err)
	}
	return TransportError("upsert admin", s.client.HSet(ctx, s.key(keyAdmins), admin.Name, data).Err())
}

type storedAdmin struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func decodeBlob(raw interface{}, dest interface{}) (bool, error) {
	if raw == nil {
		return false, nil
	}
	str, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("unexpected redis value %T", raw)
	}
	return true, json.Unmarshal([]byte(str), dest)
}
