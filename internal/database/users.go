package database

import (
	"context"
	"errors"
	"socialize/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserAlreadyExists = errors.New("user already exists with this email or username")

const userColumns = `
	id, username, email, password_hash, profile_picture, cover_picture,
	description, city, hometown, is_admin, created_at, updated_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.ProfilePicture,
		&user.CoverPicture,
		&user.Description,
		&user.City,
		&user.Hometown,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, arg.Username, arg.Email, arg.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(q.db.QueryRow(ctx, query, email))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

// UpdateUserPassword reports false when no user has the given id.
func (q *Queries) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) (bool, error) {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := q.db.Exec(ctx, query, newPasswordHash, userID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}
