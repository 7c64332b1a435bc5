package account

import (
	"context"
	"time"

	"socialize/internal/database"
	"socialize/internal/models"
	"socialize/internal/session"
)

// Repository is the persistence surface of the account flows.
type Repository interface {
	session.Store
	CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) (bool, error)
	CreatePasswordResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	ConsumePasswordResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
}

// Transactor runs fn with a Repository bound to a single transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error
}

type postgresTransactor struct {
	store *database.Store
}

// NewPostgresTransactor adapts database.Store.ExecTx to Transactor.
func NewPostgresTransactor(store *database.Store) Transactor {
	return postgresTransactor{store: store}
}

func (t postgresTransactor) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return t.store.ExecTx(ctx, func(q *database.Queries) error {
		return fn(q)
	})
}
