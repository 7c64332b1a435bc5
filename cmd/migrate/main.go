package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"socialize/internal/config"
	"socialize/internal/database"
	"socialize/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("cannot load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	err = database.Migrate(cfg.DB.Source, *direction)
	switch {
	case errors.Is(err, database.ErrNoChange):
		log.Info("no migrations to apply", "direction", *direction)
	case err != nil:
		log.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	default:
		log.Info("migrations applied", "direction", *direction)
	}
}
