package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"uxcellence/models"
)

// CountdownStatus is what clients need to derive the reveal locally.
type CountdownStatus struct {
	Round           int        `json:"round"`
	Active          bool       `json:"active"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	RemainingMs     int64      `json:"remainingMs"`
	Revealed        bool       `json:"revealed"`
}

// RevealGate stores a shared countdown per round and schedules one expiry
// timer per active countdown so observers get a countdown_finished push.
type RevealGate struct {
	store     Store
	publisher Publisher
	clock     clockwork.Clock
	duration  time.Duration

	timersMu sync.Mutex
	timers   map[int]*expiry
}

type expiry struct {
	timer clockwork.Timer
	done  chan struct{}
}

func NewRevealGate(store Store, publisher Publisher, clock clockwork.Clock, duration time.Duration) *RevealGate {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RevealGate{
		store:     store,
		publisher: publisher,
		clock:     clock,
		duration:  duration,
		timers:    make(map[int]*expiry),
	}
}

// Start arms the countdown for a round from its full duration, restarting it
// if it is already running.
func (g *RevealGate) Start(ctx context.Context, round int) (*CountdownStatus, error) {
	if err := g.requireRound(ctx, round); err != nil {
		return nil, err
	}

	now := g.clock.Now().UTC()
	countdown := &models.Countdown{
		Round:           round,
		Active:          true,
		StartedAt:       &now,
		DurationSeconds: int(g.duration / time.Second),
	}
	if err := g.store.SaveCountdown(ctx, countdown); err != nil {
		return nil, err
	}

	g.schedule(round, countdown.Deadline())
	log.Info().Int("round", round).Dur("duration", g.duration).Msg("countdown started")

	status := g.status(countdown)
	g.publish(ctx, EventCountdownStarted, round, status)
	return &status, nil
}

func (g *RevealGate) Stop(ctx context.Context, round int) (*CountdownStatus, error) {
	if err := g.requireRound(ctx, round); err != nil {
		return nil, err
	}

	countdown, err := g.store.GetCountdown(ctx, round)
	if err != nil {
		return nil, err
	}
	countdown.Active = false
	countdown.StartedAt = nil
	if err := g.store.SaveCountdown(ctx, countdown); err != nil {
		return nil, err
	}

	g.cancel(round)
	log.Info().Int("round", round).Msg("countdown stopped")

	status := g.status(countdown)
	g.publish(ctx, EventCountdownStopped, round, status)
	return &status, nil
}

func (g *RevealGate) Status(ctx context.Context, round int) (*CountdownStatus, error) {
	countdown, err := g.store.GetCountdown(ctx, round)
	if err != nil {
		return nil, err
	}
	status := g.status(countdown)
	return &status, nil
}

// Revealed reports whether descriptions for the round may be shown.
func (g *RevealGate) Revealed(ctx context.Context, round int) (bool, error) {
	status, err := g.Status(ctx, round)
	if err != nil {
		return false, err
	}
	return status.Revealed, nil
}

// CancelAll drops every pending expiry timer. Stored records are untouched.
func (g *RevealGate) CancelAll() {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()
	for round, exp := range g.timers {
		exp.stop()
		delete(g.timers, round)
	}
}

func (g *RevealGate) status(c *models.Countdown) CountdownStatus {
	status := CountdownStatus{
		Round:           c.Round,
		Active:          c.Active,
		StartedAt:       c.StartedAt,
		DurationSeconds: c.DurationSeconds,
	}
	if !c.Active || c.StartedAt == nil {
		return status
	}
	remaining := c.Deadline().Sub(g.clock.Now())
	if remaining <= 0 {
		status.Revealed = true
		return status
	}
	status.RemainingMs = remaining.Milliseconds()
	return status
}

func (g *RevealGate) schedule(round int, deadline time.Time) {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()

	if existing, ok := g.timers[round]; ok {
		existing.stop()
	}
	exp := &expiry{
		timer: g.clock.NewTimer(deadline.Sub(g.clock.Now())),
		done:  make(chan struct{}),
	}
	g.timers[round] = exp

	go func() {
		select {
		case <-exp.timer.Chan():
		case <-exp.done:
			return
		}

		g.timersMu.Lock()
		current := g.timers[round] == exp
		if current {
			delete(g.timers, round)
		}
		g.timersMu.Unlock()
		if !current {
			return
		}

		log.Info().Int("round", round).Msg("countdown finished")
		g.publish(context.Background(), EventCountdownFinished, round, fields{"round": round, "revealed": true})
	}()
}

func (g *RevealGate) cancel(round int) {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()
	if exp, ok := g.timers[round]; ok {
		exp.stop()
		delete(g.timers, round)
	}
}

func (g *RevealGate) requireRound(ctx context.Context, round int) error {
	state, err := g.store.State(ctx)
	if err != nil {
		return err
	}
	if _, ok := state.FindRound(round); !ok {
		return ErrRoundNotFound
	}
	return nil
}

func (g *RevealGate) publish(ctx context.Context, eventType string, round int, payload interface{}) {
	event := Event{Type: eventType, Round: round, Payload: payload, At: g.clock.Now().UTC()}
	if err := g.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to publish event")
	}
}

func (e *expiry) stop() {
	close(e.done)
	if !e.timer.Stop() {
		select {
		case <-e.timer.Chan():
		default:
		}
	}
}
