package logger

import (
	"io"
	"log/slog"
	"os"

	"socialize/internal/config"
)

// New builds the process logger: human readable text in development, JSON in
// production so the collector can index fields.
func New(env string) *slog.Logger {
	return newWithWriter(env, os.Stdout)
}

func newWithWriter(env string, w io.Writer) *slog.Logger {
	if env == config.EnvProduction {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
