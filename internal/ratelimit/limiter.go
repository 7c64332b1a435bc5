// Package ratelimit provides a fixed-window attempt counter backed by redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialize/internal/metrics"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited     = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Actions limited by the account flows.
const (
	ActionLogin          = "login"
	ActionForgotPassword = "forgot_password"
	ActionResetPassword  = "reset_password"
)

// Limiter counts attempts per (action, key) in fixed windows. A nil *Limiter
// allows everything, which is how limiting is disabled.
type Limiter struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
	prefix      string
}

func New(client *redis.Client, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		redis:       client,
		maxAttempts: int64(maxAttempts),
		window:      window,
		prefix:      "rl:",
	}
}

func (l *Limiter) key(action, subject string) string {
	return l.prefix + action + ":" + subject
}

// Allow records one attempt and returns ErrLimited once the window holds more
// than maxAttempts. Redis failures are wrapped in ErrUnavailable.
func (l *Limiter) Allow(ctx context.Context, action, subject string) error {
	if l == nil || l.redis == nil || subject == "" {
		return nil
	}

	key := l.key(action, subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > l.maxAttempts {
		metrics.RateLimited.WithLabelValues(action).Inc()
		return ErrLimited
	}
	return nil
}

// Reset clears the counter, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, action, subject string) error {
	if l == nil || l.redis == nil || subject == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(action, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
