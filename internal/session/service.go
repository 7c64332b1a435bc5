// Package session implements the lifecycle of persisted login sessions:
// issuing opaque tokens, resolving them back to a record, sliding renewal,
// revocation and the periodic expiry sweep.
//
// Absence is never an error here. Validate reports a missing, revoked or
// expired token through its boolean result; errors are reserved for faults
// in the underlying store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialize/internal/auth"
	"socialize/internal/database"
	"socialize/internal/metrics"
	"socialize/internal/models"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. *database.Queries
// implements it, both on the pool and inside a transaction.
type Store interface {
	CreateSession(ctx context.Context, arg database.CreateSessionParams) (*models.Session, error)
	TouchActiveSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error)
	ExtendSession(ctx context.Context, tokenHash string, now, expiresAt time.Time) (bool, error)
	RevokeSessionByTokenHash(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeSessionByID(ctx context.Context, sessionID uuid.UUID, userID int64, now time.Time) (bool, error)
	RevokeAllSessionsForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)
	ListActiveSessionsForUser(ctx context.Context, userID int64, now time.Time) ([]models.Session, error)
}

// ClientMeta is the originating client information recorded with a session.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

type Options struct {
	TTL            time.Duration
	RenewThreshold time.Duration
	TokenLength    int
	// Now is the time source. Defaults to time.Now in UTC.
	Now func() time.Time
}

type Service struct {
	store          Store
	tokens         *auth.TokenGenerator
	ttl            time.Duration
	renewThreshold time.Duration
	now            func() time.Time
}

func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	tokens, err := auth.NewTokenGenerator(opts.TokenLength)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:          store,
		tokens:         tokens,
		ttl:            opts.TTL,
		renewThreshold: opts.RenewThreshold,
		now:            now,
	}, nil
}

// WithStore returns a copy of the service bound to another store, typically
// the *database.Queries of an open transaction.
func (s *Service) WithStore(store Store) *Service {
	clone := *s
	clone.store = store
	return &clone
}

// Create issues a new session for userID and returns the raw token together
// with the stored record. The raw token is not recoverable afterwards.
func (s *Service) Create(ctx context.Context, userID int64, meta ClientMeta) (string, *models.Session, error) {
	now := s.now()
	token := s.tokens.New()

	session, err := s.store.CreateSession(ctx, database.CreateSessionParams{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: auth.HashToken(token),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsCreated.Inc()
	return token, session, nil
}

// Validate resolves token to an active, unexpired session and records the
// access. ok is false when the token does not authenticate.
func (s *Service) Validate(ctx context.Context, token string) (models.Session, bool, error) {
	if token == "" {
		metrics.SessionValidations.WithLabelValues("missing").Inc()
		return models.Session{}, false, nil
	}

	session, err := s.store.TouchActiveSession(ctx, auth.HashToken(token), s.now())
	if err != nil {
		metrics.SessionValidations.WithLabelValues("error").Inc()
		return models.Session{}, false, fmt.Errorf("validate session: %w", err)
	}
	if session == nil {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return models.Session{}, false, nil
	}

	metrics.SessionValidations.WithLabelValues("valid").Inc()
	return *session, true, nil
}

// NeedsRenewal reports whether session is within the renewal threshold of
// its expiry.
func (s *Service) NeedsRenewal(session models.Session) bool {
	return session.ExpiresAt.Sub(s.now()) < s.renewThreshold
}

// Extend pushes the expiry of an active session to now + TTL. It returns
// false when the token does not belong to an active session.
func (s *Service) Extend(ctx context.Context, token string) (bool, error) {
	now := s.now()
	extended, err := s.store.ExtendSession(ctx, auth.HashToken(token), now, now.Add(s.ttl))
	if err != nil {
		return false, fmt.Errorf("extend session: %w", err)
	}
	if extended {
		metrics.SessionRenewals.Inc()
	}
	return extended, nil
}

// Revoke deactivates the session behind token. Revoking an already inactive
// or unknown session reports false.
func (s *Service) Revoke(ctx context.Context, token string) (bool, error) {
	return s.revoke(ctx, token, metrics.ReasonLogout)
}

// RevokeOrphan deactivates a session whose owner no longer exists.
func (s *Service) RevokeOrphan(ctx context.Context, token string) (bool, error) {
	return s.revoke(ctx, token, metrics.ReasonOrphan)
}

func (s *Service) revoke(ctx context.Context, token, reason string) (bool, error) {
	revoked, err := s.store.RevokeSessionByTokenHash(ctx, auth.HashToken(token), s.now())
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	if revoked {
		metrics.SessionsRevoked.WithLabelValues(reason).Inc()
	}
	return revoked, nil
}

// RevokeByID deactivates one of userID's sessions by its record id.
func (s *Service) RevokeByID(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	revoked, err := s.store.RevokeSessionByID(ctx, sessionID, userID, s.now())
	if err != nil {
		return false, fmt.Errorf("revoke session %s: %w", sessionID, err)
	}
	if revoked {
		metrics.SessionsRevoked.WithLabelValues(metrics.ReasonManual).Inc()
	}
	return revoked, nil
}

// RevokeAll deactivates every active session of userID and returns how many
// changed. reason is recorded in metrics only.
func (s *Service) RevokeAll(ctx context.Context, userID int64, reason string) (int64, error) {
	count, err := s.store.RevokeAllSessionsForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions of user %d: %w", userID, err)
	}
	if count > 0 {
		metrics.SessionsRevoked.WithLabelValues(reason).Add(float64(count))
	}
	return count, nil
}

// Sweep marks every active session past its expiry as expired.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	count, err := s.store.ExpireSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	metrics.SessionsSwept.Add(float64(count))
	return count, nil
}

func (s *Service) ListActive(ctx context.Context, userID int64) ([]models.Session, error) {
	sessions, err := s.store.ListActiveSessionsForUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions of user %d: %w", userID, err)
	}
	return sessions, nil
}
