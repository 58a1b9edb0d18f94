package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type PGListenerConfig struct {
	DatabaseURL   string
	NotifyChannel string
	PingInterval  time.Duration
}

// PGListener turns row-change notifications from the database trigger into
// state_changed events, so writes made by other processes reach clients.
type PGListener struct {
	listener  *pq.Listener
	publisher Publisher
	cfg       PGListenerConfig
}

func NewPGListener(publisher Publisher, cfg PGListenerConfig) (*PGListener, error) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for notifications")
	return &PGListener{listener: l, publisher: publisher, cfg: cfg}, nil
}

func (l *PGListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established; a notification may have been missed
				l.forward(ctx, "")
				continue
			}
			l.forward(ctx, note.Extra)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// forward publishes a state_changed event naming the table that changed.
func (l *PGListener) forward(ctx context.Context, table string) {
	event := Event{Type: EventStateChanged, Payload: fields{"table": table}, At: time.Now().UTC()}
	if err := l.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("table", table).Msg("failed to publish state change")
	}
}
