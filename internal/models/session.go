package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionRevoked SessionStatus = "revoked"
	SessionExpired SessionStatus = "expired"
)

// Session is a persisted login. The raw token is never stored; TokenHash is the
// SHA-256 of the cookie value.
type Session struct {
	ID           uuid.UUID     `json:"id" example:"a1b2c3d4-e5f6-7890-1234-567890abcdef"`
	UserID       int64         `json:"-"`
	TokenHash    string        `json:"-"`
	Status       SessionStatus `json:"-"`
	UserAgent    string        `json:"user_agent" example:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) ..."`
	IPAddress    string        `json:"ip_address" example:"198.51.100.10"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	ExpiresAt    time.Time     `json:"expires_at"`
	EndedAt      *time.Time    `json:"-"`
}

// IsActive reports whether the session may authenticate a request at now.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionActive && s.ExpiresAt.After(now)
}
