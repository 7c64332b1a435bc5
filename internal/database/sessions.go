package database

import (
	"context"
	"errors"
	"socialize/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `
	id, user_id, token_hash, status, user_agent, ip_address,
	created_at, last_accessed, expires_at, ended_at
`

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.Status,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.LastAccessed,
		&session.ExpiresAt,
		&session.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

type CreateSessionParams struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash string
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (*models.Session, error) {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, status, user_agent, ip_address, created_at, last_accessed, expires_at)
		VALUES ($1, $2, $3, 'active', $4, $5, $6, $6, $7)
		RETURNING ` + sessionColumns

	return scanSession(q.db.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.TokenHash, arg.UserAgent, arg.IPAddress, arg.CreatedAt, arg.ExpiresAt))
}

func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`
	return scanSession(q.db.QueryRow(ctx, query, tokenHash))
}

// TouchActiveSession sets last_accessed on an active, unexpired session and returns it.
// It returns (nil, nil) when no such session exists.
func (q *Queries) TouchActiveSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	query := `
		UPDATE sessions SET last_accessed = $2
		WHERE token_hash = $1 AND status = 'active' AND expires_at > $2
		RETURNING ` + sessionColumns
	return scanSession(q.db.QueryRow(ctx, query, tokenHash, now))
}

func (q *Queries) ExtendSession(ctx context.Context, tokenHash string, now, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE sessions SET expires_at = $3, last_accessed = $2
		WHERE token_hash = $1 AND status = 'active'
	`
	res, err := q.db.Exec(ctx, query, tokenHash, now, expiresAt)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) RevokeSessionByTokenHash(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions SET status = 'revoked', ended_at = $2
		WHERE token_hash = $1 AND status = 'active'
	`
	res, err := q.db.Exec(ctx, query, tokenHash, now)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// RevokeSessionByID only touches sessions owned by userID.
func (q *Queries) RevokeSessionByID(ctx context.Context, sessionID uuid.UUID, userID int64, now time.Time) (bool, error) {
	query := `
		UPDATE sessions SET status = 'revoked', ended_at = $3
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`
	res, err := q.db.Exec(ctx, query, sessionID, userID, now)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) RevokeAllSessionsForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		UPDATE sessions SET status = 'revoked', ended_at = $2
		WHERE user_id = $1 AND status = 'active'
	`
	res, err := q.db.Exec(ctx, query, userID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (q *Queries) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE sessions SET status = 'expired', ended_at = $1
		WHERE status = 'active' AND expires_at <= $1
	`
	res, err := q.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (q *Queries) ListActiveSessionsForUser(ctx context.Context, userID int64, now time.Time) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status = 'active' AND expires_at > $2
		ORDER BY last_accessed DESC
	`
	rows, err := q.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		return []models.Session{}, nil
	}

	return sessions, nil
}
