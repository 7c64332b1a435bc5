package api

import (
	"context"
	"log/slog"

	"socialize/internal/account"
	"socialize/internal/config"
	"socialize/internal/session"
	"socialize/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config   *config.Config
	db       Pinger
	accounts *account.Service
	sessions *session.Service
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, db Pinger, accounts *account.Service, sessions *session.Service, hub *websocket.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   cfg,
		db:       db,
		accounts: accounts,
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.NewUpgrader(cfg.HTTP.AllowedOrigins),
		logger:   logger,
	}
}
