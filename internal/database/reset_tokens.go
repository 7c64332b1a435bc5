package database

import (
	"context"
	"errors"
	"socialize/internal/models"
	"time"

	"github.com/jackc/pgx/v5"
)

const resetTokenColumns = `id, email, token_hash, expires_at, used, used_at, created_at`

func scanResetToken(row pgx.Row) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := row.Scan(
		&token.ID,
		&token.Email,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Used,
		&token.UsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (q *Queries) CreatePasswordResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	query := `
		INSERT INTO password_reset_tokens (email, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING ` + resetTokenColumns
	return scanResetToken(q.db.QueryRow(ctx, query, email, tokenHash, expiresAt))
}

// ConsumePasswordResetToken marks an unused, unexpired token as used and returns it.
// A token can be consumed once; later calls return (nil, nil).
func (q *Queries) ConsumePasswordResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		RETURNING ` + resetTokenColumns
	return scanResetToken(q.db.QueryRow(ctx, query, tokenHash, now))
}

func (q *Queries) GetPasswordResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `SELECT ` + resetTokenColumns + ` FROM password_reset_tokens WHERE token_hash = $1`
	return scanResetToken(q.db.QueryRow(ctx, query, tokenHash))
}
