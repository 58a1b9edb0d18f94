package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	EventTeamCreated       = "team_created"
	EventTeamDeleted       = "team_deleted"
	EventQuestionCreated   = "question_created"
	EventQuestionDeleted   = "question_deleted"
	EventTeamSpun          = "team_spun"
	EventRoundAdvanced     = "round_advanced"
	EventRoundReset        = "round_reset"
	EventGameReset         = "game_reset"
	EventMarksRecorded     = "marks_recorded"
	EventRoundUpdated      = "round_updated"
	EventStateReplaced     = "state_replaced"
	EventStateChanged      = "state_changed"
	EventCountdownStarted  = "countdown_started"
	EventCountdownStopped  = "countdown_stopped"
	EventCountdownFinished = "countdown_finished"
)

// Event is a committed state change pushed to observers.
type Event struct {
	Type    string      `json:"type"`
	Round   int         `json:"round,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
	Origin  string      `json:"origin,omitempty"`
}

// Publisher delivers events to observers. Publish failures never undo the
// state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// FanoutPublisher forwards every event to each of its publishers.
type FanoutPublisher []Publisher

func (f FanoutPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Origin        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// ConnectNATS dials the broker with reconnect logging.
func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("uxcellence-" + cfg.Origin),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSPublisher publishes events on <prefix>.<type> so other instances can
// relay them to their own websocket clients.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	origin string
}

func NewNATSPublisher(nc *nats.Conn, prefix, origin string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), origin: origin}
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if event.Origin == "" {
		event.Origin = p.origin
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.prefix+"."+event.Type, data); err != nil {
		return TransportError("publish event", err)
	}
	return nil
}

// NATSRelay forwards events published by other instances into a local publisher.
type NATSRelay struct {
	nc     *nats.Conn
	prefix string
	origin string
	target Publisher
	sub    *nats.Subscription
}

func NewNATSRelay(nc *nats.Conn, prefix, origin string, target Publisher) *NATSRelay {
	return &NATSRelay{nc: nc, prefix: strings.TrimSuffix(prefix, "."), origin: origin, target: target}
}

func (r *NATSRelay) Start(ctx context.Context) error {
	subject := r.prefix + ".>"
	sub, err := r.nc.Subscribe(subject, func(msg *nats.Msg) {
		r.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	r.sub = sub
	log.Info().Str("subject", subject).Msg("relaying events from other instances")
	return nil
}

func (r *NATSRelay) handle(ctx context.Context, data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Error().Err(err).Msg("failed to decode relayed event")
		return
	}
	if event.Origin == r.origin {
		return
	}
	if err := r.target.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("failed to relay event")
	}
}

func (r *NATSRelay) Stop() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
