package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"uxcellence/config"
	"uxcellence/handlers"
	"uxcellence/middleware"
	"uxcellence/routes"
	"uxcellence/services"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to initialize store")
	}

	clock := clockwork.NewRealClock()
	origin := uuid.NewString()

	// Initialize WebSocket hub
	hub := services.NewHub(store)
	go hub.Run(ctx)

	publisher := services.FanoutPublisher{hub}
	if cfg.NATSURL != "" {
		nc, err := services.ConnectNATS(services.NATSConfig{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Origin:        origin,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()

		publisher = append(publisher, services.NewNATSPublisher(nc, cfg.NATSSubjectPrefix, origin))
		relay := services.NewNATSRelay(nc, cfg.NATSSubjectPrefix, origin, hub)
		if err := relay.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start NATS relay")
		}
		defer relay.Stop()
	}

	if cfg.StoreDriver == config.DriverPostgres && cfg.PGNotifyChannel != "" {
		listener, err := services.NewPGListener(hub, services.PGListenerConfig{
			DatabaseURL:   cfg.PostgresURL(),
			NotifyChannel: cfg.PGNotifyChannel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start database listener")
		}
		go func() {
			if err := listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("database listener stopped")
			}
		}()
	}

	// Initialize services
	engine := services.NewEngine(store, publisher, services.EngineOptions{
		AdminName:       cfg.AdminName,
		EnforceCapacity: cfg.EnforceRoundCapacity,
		Clock:           clock,
	})
	gate := services.NewRevealGate(store, publisher, clock, time.Duration(cfg.CountdownSeconds)*time.Second)
	if cfg.AutoCountdown {
		engine.OnRoundAssigned(func(ctx context.Context, round int) {
			if _, err := gate.Start(ctx, round); err != nil {
				log.Error().Err(err).Int("round", round).Msg("failed to start countdown for assigned round")
			}
		})
	}

	sessions := services.NewSessionService(store, cfg.JWTSecret, cfg.SessionTTL, cfg.AdminName, clock)
	if err := sessions.EnsureAdmin(ctx, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to store admin credentials")
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS())

	routes.SetupRoutes(router, routes.Handlers{
		State:    handlers.NewStateHandler(engine),
		Auth:     handlers.NewAuthHandler(sessions, engine, gate),
		Team:     handlers.NewTeamHandler(engine),
		Question: handlers.NewQuestionHandler(engine),
		Round:    handlers.NewRoundHandler(engine, gate),
		Game:     handlers.NewGameHandler(engine, gate, sessions),
	}, hub, sessions, cfg.APIKey)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("driver", cfg.StoreDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gate.CancelAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func initStore(ctx context.Context, cfg *config.Config) (services.Store, error) {
	if cfg.StoreDriver == config.DriverRedis {
		client := config.InitRedis(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		log.Info().Str("prefix", cfg.RedisKeyPrefix).Msg("redis connected")
		return services.NewRedisStore(client, cfg.RedisKeyPrefix, cfg.Rounds), nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	store := services.NewGormStore(db, cfg.Rounds)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
