// @title           Socialize API
// @version         1.0
// @description     Session-backed authentication and realtime presence for the Socialize app.
// @schemes         http https
// @BasePath        /
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "socialize/docs"
	"socialize/internal/account"
	"socialize/internal/api"
	"socialize/internal/auth"
	"socialize/internal/config"
	"socialize/internal/database"
	"socialize/internal/events"
	"socialize/internal/logger"
	"socialize/internal/ratelimit"
	"socialize/internal/session"
	"socialize/internal/websocket"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("cannot load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWT.Secret == "" {
		gen, err := auth.NewTokenGenerator(64)
		if err != nil {
			return err
		}
		cfg.JWT.Secret = gen.New()
		log.Warn("jwt.secret is not set, using a random secret; realtime tickets will not survive a restart")
	}

	if cfg.DB.MigrateOnStart {
		if err := database.Migrate(cfg.DB.Source, "up"); err != nil && !errors.Is(err, database.ErrNoChange) {
			return err
		}
		log.Info("database schema is up to date")
	}

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		return err
	}
	log.Info("connected to database")

	store := database.NewStore(dbpool)

	var limiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis is unreachable, rate limiting will fail open", "addr", cfg.Redis.Addr, "error", err)
		}
		limiter = ratelimit.New(rdb, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
	} else {
		log.Info("redis.addr is not set, rate limiting disabled")
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("publishing auth events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		publisher = events.NewLogPublisher(log)
	}
	defer publisher.Close()

	sessions, err := session.NewService(store.Queries, session.Options{
		TTL:            cfg.Auth.SessionTTL,
		RenewThreshold: cfg.Auth.RenewThreshold,
		TokenLength:    cfg.Auth.SessionTokenLength,
	})
	if err != nil {
		return err
	}

	accounts, err := account.NewService(account.Deps{
		Repo:      store.Queries,
		Tx:        account.NewPostgresTransactor(store),
		Sessions:  sessions,
		Hasher:    auth.NewHasher(cfg.Auth.BcryptCost),
		Limiter:   limiter,
		Publisher: publisher,
		Logger:    log,
	}, account.Config{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		ResetTTL:          cfg.Auth.ResetTTL,
		ResetTokenLength:  cfg.Auth.ResetTokenLength,
		FrontendURL:       cfg.HTTP.FrontendURL,
	})
	if err != nil {
		return err
	}

	hub := websocket.NewHub(websocket.NewRegistry(), log)
	go hub.Run(ctx)
	go sessions.RunSweeper(ctx, cfg.Auth.SweepInterval, log)

	server := api.NewServer(cfg, store, accounts, sessions, hub, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.HTTP.Addr, "env", cfg.Env)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
