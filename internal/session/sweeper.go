package session

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper calls Sweep every interval until ctx is cancelled. It blocks.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("session sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			count, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if count > 0 {
				logger.Info("expired sessions swept", "count", count)
			}
		}
	}
}
