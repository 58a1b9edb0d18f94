package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"uxcellence/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func newTestEngine(store Store, pub Publisher) *Engine {
	return NewEngine(store, pub, EngineOptions{
		AdminName: "uxcellence",
		Clock:     clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
}

// seedRound inserts teams t1..tN and questions q1..qM in the given round.
func seedRound(t *testing.T, store Store, round, teams, questions int) {
	t.Helper()
	for i := 1; i <= teams; i++ {
		mustInsertTeam(t, store, fmt.Sprintf("t%d", i), fmt.Sprintf("Team %d", i), round)
	}
	for i := 1; i <= questions; i++ {
		mustInsertQuestion(t, store, fmt.Sprintf("q%d", i), round)
	}
}

// assertAssignmentsConsistent checks the one-question-one-team invariants.
func assertAssignmentsConsistent(t *testing.T, state *models.State) {
	t.Helper()
	holders := make(map[string]string)
	for _, team := range state.Teams {
		if !team.HasSpun {
			if team.AssignedQuestionID != nil {
				t.Fatalf("team %s has an assignment without spinning", team.ID)
			}
			continue
		}
		if team.AssignedQuestionID == nil {
			t.Fatalf("team %s spun without an assignment", team.ID)
		}
		qid := *team.AssignedQuestionID
		if other, ok := holders[qid]; ok {
			t.Fatalf("question %s assigned to both %s and %s", qid, other, team.ID)
		}
		holders[qid] = team.ID

		q, ok := state.FindQuestion(qid)
		if !ok {
			t.Fatalf("team %s references missing question %s", team.ID, qid)
		}
		if !q.IsLocked || q.AssignedTeamID == nil || *q.AssignedTeamID != team.ID {
			t.Fatalf("question %s does not reference team %s back: %#v", qid, team.ID, q)
		}
	}
	for _, q := range state.Questions {
		if q.IsLocked != (q.AssignedTeamID != nil) {
			t.Fatalf("question %s lock flag and team reference disagree", q.ID)
		}
	}
}

func TestSpinScenarioThenAdvance(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		engine := newTestEngine(store, pub)
		seedRound(t, store, 1, 3, 3)

		seen := make(map[string]bool)
		for _, id := range []string{"t1", "t2", "t3"} {
			q, err := engine.Spin(ctx, id)
			if err != nil {
				t.Fatalf("spin %s: %v", id, err)
			}
			if seen[q.ID] {
				t.Fatalf("question %s handed out twice", q.ID)
			}
			seen[q.ID] = true
		}

		state, err := engine.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		assertAssignmentsConsistent(t, state)

		next, err := engine.AdvanceRound(ctx, []string{"t1", "t3"})
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if next != 2 {
			t.Fatalf("expected round 2, got %d", next)
		}

		state, err = engine.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if state.CurrentRound != 2 {
			t.Fatalf("expected current round 2, got %d", state.CurrentRound)
		}
		if _, ok := state.FindTeam("t2"); ok {
			t.Fatal("expected t2 to be deleted")
		}
		for _, id := range []string{"t1", "t3"} {
			team, ok := state.FindTeam(id)
			if !ok {
				t.Fatalf("expected %s to remain", id)
			}
			if team.Round != 2 || team.HasSpun || team.AssignedQuestionID != nil {
				t.Fatalf("expected %s promoted and cleared, got %#v", id, team)
			}
		}
		if pub.count(EventTeamSpun) != 3 || pub.count(EventRoundAdvanced) != 1 {
			t.Fatalf("unexpected events %v", pub.types())
		}
	})
}

func TestAdvanceRoundRerunIsRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		engine := newTestEngine(store, nil)
		seedRound(t, store, 1, 3, 3)
		for _, id := range []string{"t1", "t2", "t3"} {
			if _, err := engine.Spin(ctx, id); err != nil {
				t.Fatalf("spin %s: %v", id, err)
			}
		}
		if _, err := engine.AdvanceRound(ctx, []string{"t1", "t3"}); err != nil {
			t.Fatalf("advance: %v", err)
		}

		_, err := engine.AdvanceRound(ctx, []string{"t1", "t3"})
		if !errors.Is(err, ErrRoundIncomplete) {
			t.Fatalf("expected ErrRoundIncomplete on rerun, got %v", err)
		}
		state, _ := engine.State(ctx)
		if state.CurrentRound != 2 {
			t.Fatalf("expected round to stay at 2, got %d", state.CurrentRound)
		}

		_, err = engine.AdvanceRound(ctx, []string{"t2"})
		if !errors.Is(err, ErrTeamNotFound) {
			t.Fatalf("expected ErrTeamNotFound for eliminated team, got %v", err)
		}
	})
}

func TestAdvanceRoundPreconditions(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	seedRound(t, store, 1, 2, 2)

	if _, err := engine.AdvanceRound(ctx, nil); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if _, err := engine.AdvanceRound(ctx, []string{"t1"}); !errors.Is(err, ErrRoundIncomplete) {
		t.Fatalf("expected ErrRoundIncomplete, got %v", err)
	}
	if _, err := engine.AdvanceRound(ctx, []string{"ghost"}); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}

	if err := store.SetCurrentRound(ctx, 3); err != nil {
		t.Fatalf("set round: %v", err)
	}
	if _, err := engine.AdvanceRound(ctx, []string{"t1"}); !errors.Is(err, ErrFinalRound) {
		t.Fatalf("expected ErrFinalRound, got %v", err)
	}
}

// lateJoinStore registers a new team right before the round advances.
type lateJoinStore struct {
	Store
}

func (s lateJoinStore) AdvanceRound(ctx context.Context, from int, keep []string) error {
	if err := s.Store.InsertTeam(ctx, &models.Team{ID: "late", Name: "Late", Round: from}); err != nil {
		return err
	}
	return s.Store.AdvanceRound(ctx, from, keep)
}

func TestAdvanceRoundKeepsTeamJoiningMidAdvance(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedRound(t, store, 1, 2, 2)
		engine := newTestEngine(lateJoinStore{Store: store}, nil)
		for _, id := range []string{"t1", "t2"} {
			if _, err := engine.Spin(ctx, id); err != nil {
				t.Fatalf("spin %s: %v", id, err)
			}
		}

		if _, err := engine.AdvanceRound(ctx, []string{"t1"}); !errors.Is(err, ErrRoundIncomplete) {
			t.Fatalf("expected ErrRoundIncomplete, got %v", err)
		}
		team, err := store.GetTeam(ctx, "late")
		if err != nil {
			t.Fatalf("expected late team to survive, got %v", err)
		}
		if team.Round != 1 {
			t.Fatalf("expected late team in round 1, got %d", team.Round)
		}
		state, _ := store.State(ctx)
		if state.CurrentRound != 1 {
			t.Fatalf("expected round to stay at 1, got %d", state.CurrentRound)
		}
	})
}

func TestReplaceTeamsRejectsReservedName(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)

	err := engine.ReplaceTeams(ctx, []models.Team{{Name: "One"}, {Name: " UXcellence "}})
	if !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected ErrReservedName, got %v", err)
	}
	state, _ := engine.State(ctx)
	if len(state.Teams) != 0 {
		t.Fatalf("expected nothing stored, got %#v", state.Teams)
	}
}

func TestCreateTeamNameRules(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		engine := newTestEngine(store, nil)

		team, err := engine.CreateTeam(ctx, "  Team Alpha ")
		if err != nil {
			t.Fatalf("create team: %v", err)
		}
		if team.Name != "Team Alpha" || team.Round != 1 || team.HasSpun || team.ID == "" {
			t.Fatalf("unexpected team %#v", team)
		}

		if _, err := engine.CreateTeam(ctx, "team alpha"); !errors.Is(err, ErrDuplicateName) {
			t.Fatalf("expected ErrDuplicateName, got %v", err)
		}
		if _, err := engine.CreateTeam(ctx, "UXcellence"); !errors.Is(err, ErrReservedName) {
			t.Fatalf("expected ErrReservedName, got %v", err)
		}
		if _, err := engine.CreateTeam(ctx, "   "); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("expected ErrEmptyName, got %v", err)
		}
	})
}

func TestCreateTeamJoinsCurrentRound(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	if err := store.SetCurrentRound(ctx, 2); err != nil {
		t.Fatalf("set round: %v", err)
	}

	team, err := engine.CreateTeam(ctx, "Late Team")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if team.Round != 2 {
		t.Fatalf("expected team in round 2, got %d", team.Round)
	}
}

func TestCreateTeamCapacity(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)
	if err := store.UpdateRoundCapacity(ctx, 1, 1); err != nil {
		t.Fatalf("update capacity: %v", err)
	}

	lenient := newTestEngine(store, nil)
	if _, err := lenient.CreateTeam(ctx, "One"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lenient.CreateTeam(ctx, "Two"); err != nil {
		t.Fatalf("expected capacity to be informational, got %v", err)
	}

	strict := NewEngine(store, nil, EngineOptions{AdminName: "uxcellence", EnforceCapacity: true})
	if _, err := strict.CreateTeam(ctx, "Three"); !errors.Is(err, ErrRoundFull) {
		t.Fatalf("expected ErrRoundFull, got %v", err)
	}
}

func TestDeleteLockedQuestionThenReset(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		engine := newTestEngine(store, nil)
		seedRound(t, store, 1, 1, 1)

		q, err := engine.Spin(ctx, "t1")
		if err != nil {
			t.Fatalf("spin: %v", err)
		}
		if err := engine.DeleteQuestion(ctx, q.ID); !errors.Is(err, ErrLockedQuestion) {
			t.Fatalf("expected ErrLockedQuestion, got %v", err)
		}

		if err := engine.ResetRound(ctx, 1); err != nil {
			t.Fatalf("reset round: %v", err)
		}
		if err := engine.DeleteQuestion(ctx, q.ID); err != nil {
			t.Fatalf("expected delete after reset to succeed, got %v", err)
		}
		if err := engine.DeleteQuestion(ctx, q.ID); !errors.Is(err, ErrQuestionNotFound) {
			t.Fatalf("expected ErrQuestionNotFound, got %v", err)
		}
	})
}

func TestResetRoundThenRespin(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		engine := newTestEngine(store, nil)
		seedRound(t, store, 1, 3, 3)
		marks := 70
		if err := engine.RecordMarks(ctx, "t2", &marks, "solid"); err != nil {
			t.Fatalf("record marks: %v", err)
		}

		for pass := 0; pass < 2; pass++ {
			for _, id := range []string{"t1", "t2", "t3"} {
				if _, err := engine.Spin(ctx, id); err != nil {
					t.Fatalf("pass %d spin %s: %v", pass, id, err)
				}
			}
			state, err := engine.State(ctx)
			if err != nil {
				t.Fatalf("state: %v", err)
			}
			assertAssignmentsConsistent(t, state)
			status, _ := engine.RoundStatus(ctx, 1)
			if status.Phase != PhaseAllAssigned {
				t.Fatalf("expected all_assigned, got %s", status.Phase)
			}

			if err := engine.ResetRound(ctx, 1); err != nil {
				t.Fatalf("reset: %v", err)
			}
		}

		team, err := store.GetTeam(ctx, "t2")
		if err != nil {
			t.Fatalf("get team: %v", err)
		}
		if team.Marks == nil || *team.Marks != 70 {
			t.Fatal("expected marks to survive a round reset")
		}
	})
}

func TestResetAllRestoresRoundOne(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		engine := newTestEngine(store, pub)
		mustInsertTeam(t, store, "a", "A", 1)
		mustInsertTeam(t, store, "b", "B", 2)
		mustInsertQuestion(t, store, "q1", 2)
		if err := store.SetCurrentRound(ctx, 2); err != nil {
			t.Fatalf("set round: %v", err)
		}
		marks := 55
		for _, id := range []string{"a", "b"} {
			if err := engine.RecordMarks(ctx, id, &marks, "ok"); err != nil {
				t.Fatalf("marks: %v", err)
			}
		}
		if _, err := engine.Spin(ctx, "b"); err != nil {
			t.Fatalf("spin: %v", err)
		}

		if err := engine.ResetAll(ctx); err != nil {
			t.Fatalf("reset all: %v", err)
		}

		state, err := engine.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if state.CurrentRound != 1 {
			t.Fatalf("expected round 1, got %d", state.CurrentRound)
		}
		for _, team := range state.Teams {
			if team.Round != 1 || team.Marks != nil || team.Reason != "" || team.HasSpun || team.AssignedQuestionID != nil {
				t.Fatalf("expected team %s fully cleared, got %#v", team.ID, team)
			}
		}
		for _, q := range state.Questions {
			if q.IsLocked {
				t.Fatalf("expected question %s unlocked", q.ID)
			}
		}
		if pub.count(EventGameReset) != 1 {
			t.Fatalf("expected game_reset event, got %v", pub.types())
		}
	})
}

func TestSpinPreconditions(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	seedRound(t, store, 1, 2, 1)

	if _, err := engine.Spin(ctx, "ghost"); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
	if _, err := engine.Spin(ctx, "t1"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	if _, err := engine.Spin(ctx, "t1"); !errors.Is(err, ErrAlreadySpun) {
		t.Fatalf("expected ErrAlreadySpun, got %v", err)
	}
	if _, err := engine.Spin(ctx, "t2"); !errors.Is(err, ErrNoQuestionsAvailable) {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
}

func TestSpinOnlyDrawsFromTeamRound(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	mustInsertTeam(t, store, "t1", "One", 1)
	mustInsertQuestion(t, store, "r2", 2)

	if _, err := engine.Spin(ctx, "t1"); !errors.Is(err, ErrNoQuestionsAvailable) {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
	mustInsertQuestion(t, store, "r1", 1)
	q, err := engine.Spin(ctx, "t1")
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if q.ID != "r1" {
		t.Fatalf("expected round 1 question, got %s", q.ID)
	}
}

// failingSpinStore loses the team update after a successful claim.
type failingSpinStore struct {
	Store
}

func (s failingSpinStore) MarkSpun(context.Context, string, string, time.Time) error {
	return TransportError("mark team spun", errors.New("connection reset"))
}

func TestSpinReleasesQuestionWhenTeamUpdateFails(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedRound(t, store, 1, 1, 1)
		engine := newTestEngine(failingSpinStore{Store: store}, nil)

		_, err := engine.Spin(ctx, "t1")
		if KindOf(err) != KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}

		q, err := store.GetQuestion(ctx, "q1")
		if err != nil {
			t.Fatalf("get question: %v", err)
		}
		if q.IsLocked || q.AssignedTeamID != nil {
			t.Fatalf("expected q1 released after failed spin, got %#v", q)
		}
		spins, _ := store.ListSpins(ctx, 1)
		if len(spins) != 0 {
			t.Fatalf("expected no history for failed spin, got %d", len(spins))
		}
	})
}

func TestSpinLostRaceSurfacesConflict(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	seedRound(t, store, 1, 1, 1)
	engine := newTestEngine(claimStealingStore{Store: store}, nil)

	_, err := engine.Spin(ctx, "t1")
	if !errors.Is(err, ErrQuestionAlreadyLocked) {
		t.Fatalf("expected ErrQuestionAlreadyLocked, got %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %q", KindOf(err))
	}
	team, _ := store.GetTeam(ctx, "t1")
	if team.HasSpun {
		t.Fatal("expected losing team to remain unspun")
	}
}

// claimStealingStore lets another team claim the question just before us.
type claimStealingStore struct {
	Store
}

func (s claimStealingStore) ClaimQuestion(ctx context.Context, questionID, teamID string) error {
	if err := s.Store.ClaimQuestion(ctx, questionID, "intruder"); err != nil {
		return err
	}
	return s.Store.ClaimQuestion(ctx, questionID, teamID)
}

func TestConcurrentSpinsNeverShareQuestions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		const teams = 8
		seedRound(t, store, 1, teams, teams)
		engine := newTestEngine(store, nil)

		var wg sync.WaitGroup
		errs := make(chan error, teams)
		for i := 1; i <= teams; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for attempt := 0; attempt < 50; attempt++ {
					_, err := engine.Spin(ctx, id)
					if errors.Is(err, ErrQuestionAlreadyLocked) {
						continue
					}
					errs <- err
					return
				}
				errs <- fmt.Errorf("team %s never got a question", id)
			}(fmt.Sprintf("t%d", i))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("spin failed: %v", err)
			}
		}

		state, err := engine.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		assertAssignmentsConsistent(t, state)
		for _, q := range state.Questions {
			if !q.IsLocked {
				t.Fatalf("expected every question claimed, %s is free", q.ID)
			}
		}
	})
}

func TestOnRoundAssignedFiresOnLastSpin(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	seedRound(t, store, 1, 2, 2)

	var fired []int
	engine.OnRoundAssigned(func(_ context.Context, round int) {
		fired = append(fired, round)
	})

	if _, err := engine.Spin(ctx, "t1"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("expected no callback before the round is assigned, got %v", fired)
	}
	if _, err := engine.Spin(ctx, "t2"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	if len(fired) != 1 || fired[0] != 1 {
		t.Fatalf("expected callback for round 1, got %v", fired)
	}
}

func TestRoundStatusPhases(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)

	status, err := engine.RoundStatus(ctx, 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Phase != PhaseEmpty || !status.Current || status.Final {
		t.Fatalf("unexpected empty status %#v", status)
	}

	seedRound(t, store, 1, 2, 3)
	if _, err := engine.Spin(ctx, "t1"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	status, _ = engine.RoundStatus(ctx, 1)
	if status.Phase != PhaseSpinning || status.Spun != 1 || status.Teams != 2 || status.UnlockedQuestions != 2 {
		t.Fatalf("unexpected spinning status %#v", status)
	}

	if _, err := engine.Spin(ctx, "t2"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	status, _ = engine.RoundStatus(ctx, 1)
	if status.Phase != PhaseAllAssigned {
		t.Fatalf("expected all_assigned, got %s", status.Phase)
	}

	final, _ := engine.RoundStatus(ctx, 3)
	if !final.Final || final.MaxTeams != 10 {
		t.Fatalf("unexpected final round status %#v", final)
	}
	if _, err := engine.RoundStatus(ctx, 7); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestAssignmentsJoinTeamAndQuestion(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	seedRound(t, store, 1, 2, 2)

	q, err := engine.Spin(ctx, "t2")
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	assignments, err := engine.Assignments(ctx, 0)
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(assignments))
	}
	a := assignments[0]
	if a.TeamID != "t2" || a.TeamName != "Team 2" || a.QuestionID != q.ID || a.Question != q.Text || a.AssignedAt == nil {
		t.Fatalf("unexpected assignment %#v", a)
	}
}

func TestRecordMarksRange(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	mustInsertTeam(t, store, "t1", "One", 1)

	bad := 101
	if err := engine.RecordMarks(ctx, "t1", &bad, ""); !errors.Is(err, ErrInvalidMarks) {
		t.Fatalf("expected ErrInvalidMarks, got %v", err)
	}
	good := 100
	if err := engine.RecordMarks(ctx, "t1", &good, " top "); err != nil {
		t.Fatalf("record marks: %v", err)
	}
	team, _ := store.GetTeam(ctx, "t1")
	if team.Marks == nil || *team.Marks != 100 || team.Reason != "top" {
		t.Fatalf("unexpected marks %#v", team)
	}
	if err := engine.RecordMarks(ctx, "ghost", &good, ""); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestDeleteTeamReleasesHeldQuestion(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)
	seedRound(t, store, 1, 1, 1)

	if _, err := engine.Spin(ctx, "t1"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	if err := engine.DeleteTeam(ctx, "t1"); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if err := engine.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("expected released question to be deletable, got %v", err)
	}
}

func TestReplaceRoundsValidates(t *testing.T) {
	store := newGormTestStore(t)
	ctx := context.Background()
	engine := newTestEngine(store, nil)

	err := engine.ReplaceRounds(ctx, []models.Round{{Number: 1, Name: "A"}, {Number: 3, Name: "C"}})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := engine.ReplaceRounds(ctx, []models.Round{{Number: 2, Name: "B"}, {Number: 1, Name: "A"}}); err != nil {
		t.Fatalf("replace rounds: %v", err)
	}
	state, _ := engine.State(ctx)
	if len(state.Rounds) != 2 || state.FinalRound() != 2 {
		t.Fatalf("unexpected rounds %#v", state.Rounds)
	}
	if err := engine.SetCurrentRound(ctx, 3); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}
