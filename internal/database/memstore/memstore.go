// Package memstore is an in-memory stand-in for the Postgres queries, used by
// service and handler tests that should not need a database container.
// It mirrors the SQL semantics of package database: soft-deleted sessions,
// single-use reset tokens and unique usernames and emails.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"socialize/internal/database"
	"socialize/internal/models"

	"github.com/google/uuid"
)

// ErrUnavailable can be assigned to Store.Err to simulate a connectivity fault.
var ErrUnavailable = errors.New("memstore: unavailable")

type Store struct {
	mu sync.Mutex

	// Err, when set, is returned by every operation.
	Err error

	nextUserID  int64
	nextTokenID int64
	users       map[int64]*models.User
	sessions    map[string]*models.Session
	resets      map[string]*models.PasswordResetToken
}

func New() *Store {
	return &Store{
		users:    make(map[int64]*models.User),
		sessions: make(map[string]*models.Session),
		resets:   make(map[string]*models.PasswordResetToken),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

func (s *Store) CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == arg.Email || u.Username == arg.Username {
			return nil, database.ErrUserAlreadyExists
		}
	}
	s.nextUserID++
	now := time.Now().UTC()
	u := &models.User{
		ID:           s.nextUserID,
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.ID == id })
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Email == email })
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

// DeleteUser removes a user outright, leaving its sessions orphaned.
func (s *Store) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	u.PasswordHash = newPasswordHash
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) CreateSession(ctx context.Context, arg database.CreateSessionParams) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if _, exists := s.sessions[arg.TokenHash]; exists {
		return nil, errors.New("memstore: duplicate session token")
	}
	if arg.ExpiresAt.Before(arg.CreatedAt) {
		return nil, errors.New("memstore: session expires before it is created")
	}
	session := &models.Session{
		ID:           arg.ID,
		UserID:       arg.UserID,
		TokenHash:    arg.TokenHash,
		Status:       models.SessionActive,
		UserAgent:    arg.UserAgent,
		IPAddress:    arg.IPAddress,
		CreatedAt:    arg.CreatedAt,
		LastAccessed: arg.CreatedAt,
		ExpiresAt:    arg.ExpiresAt,
	}
	s.sessions[arg.TokenHash] = session
	copied := *session
	return &copied, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *Store) TouchActiveSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	session, ok := s.sessions[tokenHash]
	if !ok || !session.IsActive(now) {
		return nil, nil
	}
	session.LastAccessed = now
	copied := *session
	return &copied, nil
}

func (s *Store) ExtendSession(ctx context.Context, tokenHash string, now, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	session, ok := s.sessions[tokenHash]
	if !ok || session.Status != models.SessionActive {
		return false, nil
	}
	session.LastAccessed = now
	session.ExpiresAt = expiresAt
	return true, nil
}

func (s *Store) RevokeSessionByTokenHash(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	session, ok := s.sessions[tokenHash]
	if !ok || session.Status != models.SessionActive {
		return false, nil
	}
	end(session, models.SessionRevoked, now)
	return true, nil
}

func (s *Store) RevokeSessionByID(ctx context.Context, sessionID uuid.UUID, userID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, session := range s.sessions {
		if session.ID == sessionID && session.UserID == userID && session.Status == models.SessionActive {
			end(session, models.SessionRevoked, now)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RevokeAllSessionsForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var count int64
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == models.SessionActive {
			end(session, models.SessionRevoked, now)
			count++
		}
	}
	return count, nil
}

func (s *Store) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var count int64
	for _, session := range s.sessions {
		if session.Status == models.SessionActive && !session.ExpiresAt.After(now) {
			end(session, models.SessionExpired, now)
			count++
		}
	}
	return count, nil
}

func (s *Store) ListActiveSessionsForUser(ctx context.Context, userID int64, now time.Time) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	sessions := []models.Session{}
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive(now) {
			sessions = append(sessions, *session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessed.After(sessions[j].LastAccessed)
	})
	return sessions, nil
}

func (s *Store) CreatePasswordResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if _, exists := s.resets[tokenHash]; exists {
		return nil, errors.New("memstore: duplicate reset token")
	}
	s.nextTokenID++
	token := &models.PasswordResetToken{
		ID:        s.nextTokenID,
		Email:     email,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	s.resets[tokenHash] = token
	copied := *token
	return &copied, nil
}

func (s *Store) ConsumePasswordResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	token, ok := s.resets[tokenHash]
	if !ok || token.Used || !token.ExpiresAt.After(now) {
		return nil, nil
	}
	token.Used = true
	usedAt := now
	token.UsedAt = &usedAt
	copied := *token
	return &copied, nil
}

func (s *Store) GetPasswordResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	token, ok := s.resets[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

// ResetTokens returns every reset token issued for email.
func (s *Store) ResetTokens(email string) []models.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PasswordResetToken
	for _, token := range s.resets {
		if token.Email == email {
			out = append(out, *token)
		}
	}
	return out
}

func end(session *models.Session, status models.SessionStatus, now time.Time) {
	session.Status = status
	endedAt := now
	session.EndedAt = &endedAt
}
