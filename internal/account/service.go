// Package account implements the authentication flows built on top of the
// session lifecycle: registration, login, logout, request resolution and the
// password reset round trip.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"socialize/internal/auth"
	"socialize/internal/database"
	"socialize/internal/events"
	"socialize/internal/metrics"
	"socialize/internal/models"
	"socialize/internal/ratelimit"
	"socialize/internal/session"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	maxEmailLength    = 50
)

type Config struct {
	MinPasswordLength int
	ResetTTL          time.Duration
	ResetTokenLength  int
	// FrontendURL is the base of the reset link sent to the user.
	FrontendURL string
}

type Deps struct {
	Repo      Repository
	Tx        Transactor
	Sessions  *session.Service
	Hasher    *auth.Hasher
	Limiter   *ratelimit.Limiter
	Publisher events.Publisher
	Logger    *slog.Logger
}

type Service struct {
	repo        Repository
	tx          Transactor
	sessions    *session.Service
	hasher      *auth.Hasher
	resetTokens *auth.TokenGenerator
	limiter     *ratelimit.Limiter
	publisher   events.Publisher
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Repo == nil || deps.Tx == nil || deps.Sessions == nil || deps.Hasher == nil || deps.Publisher == nil {
		return nil, errors.New("account: repo, tx, sessions, hasher and publisher are required")
	}
	resetTokens, err := auth.NewTokenGenerator(cfg.ResetTokenLength)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        deps.Repo,
		tx:          deps.Tx,
		sessions:    deps.Sessions,
		hasher:      deps.Hasher,
		resetTokens: resetTokens,
		limiter:     deps.Limiter,
		publisher:   deps.Publisher,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Result is a freshly authenticated user together with the raw session token
// to hand to the client.
type Result struct {
	User    *models.User
	Token   string
	Session *models.Session
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) validatePassword(password string) error {
	if len(password) < s.cfg.MinPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters long", s.cfg.MinPasswordLength))
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput, meta session.ClientMeta) (*Result, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if username == "" || email == "" || in.Password == "" {
		return nil, invalid("Username, email, and password are required")
	}
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, invalid(fmt.Sprintf("Username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	if len(email) > maxEmailLength || !strings.Contains(email, "@") {
		return nil, invalid("Email address is invalid")
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, database.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, sess, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &Result{User: user, Token: token, Session: sess}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *Service) Login(ctx context.Context, in LoginInput, meta session.ClientMeta) (*Result, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, invalid("Email and password are required")
	}

	if err := s.allow(ctx, ratelimit.ActionLogin, email); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Matches(user.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, sess, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, ratelimit.ActionLogin, email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login limiter", "error", err)
	}
	return &Result{User: user, Token: token, Session: sess}, nil
}

// Logout revokes the session behind token. An empty or unknown token is not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := s.sessions.Revoke(ctx, token)
	return err
}

func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Identity is what a valid session token resolves to.
type Identity struct {
	User    models.User
	Session models.Session
	// Renewed is set when the session expiry was pushed forward.
	Renewed bool
}

// Resolve turns a session token into an Identity. It returns (nil, nil) when
// the token does not authenticate, including when the owning user has been
// removed, in which case the orphaned session is revoked. Sessions within
// the renewal threshold are extended.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	sess, ok, err := s.sessions.Validate(ctx, token)
	if err != nil || !ok {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("get session owner: %w", err)
	}
	if user == nil {
		if _, err := s.sessions.RevokeOrphan(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	identity := &Identity{User: *user, Session: sess}
	if s.sessions.NeedsRenewal(sess) {
		extended, err := s.sessions.Extend(ctx, token)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to extend session", "session_id", sess.ID, "error", err)
		}
		identity.Renewed = extended
	}
	return identity, nil
}

// RequestPasswordReset issues a reset token for email and publishes a
// password_reset_requested event. Unknown emails are silently ignored.
func (s *Service) RequestPasswordReset(ctx context.Context, email, clientIP string) error {
	email = normalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}

	if err := s.allow(ctx, ratelimit.ActionForgotPassword, "ip:"+clientIP); err != nil {
		return err
	}
	if err := s.allow(ctx, ratelimit.ActionForgotPassword, "email:"+email); err != nil {
		return err
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil
	}

	token := s.resetTokens.New()
	expiresAt := s.now().Add(s.cfg.ResetTTL)
	if _, err := s.repo.CreatePasswordResetToken(ctx, email, auth.HashToken(token), expiresAt); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}

	err = s.publisher.Publish(ctx, email, events.Event{
		Type:       events.TypePasswordResetRequested,
		OccurredAt: s.now(),
		Payload: events.PasswordResetRequested{
			Email:     email,
			Username:  user.Username,
			ResetURL:  s.resetURL(token),
			ExpiresAt: expiresAt,
		},
	})
	if err != nil {
		return fmt.Errorf("publish reset request: %w", err)
	}
	return nil
}

func (s *Service) resetURL(token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// ResetPassword consumes a reset token, rewrites the password and revokes
// every session of the user, all in one transaction.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, clientIP string) error {
	if token == "" || newPassword == "" {
		return invalid("Token and new password are required")
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.allow(ctx, ratelimit.ActionResetPassword, clientIP); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	var userID int64
	err = s.tx.WithinTx(ctx, func(repo Repository) error {
		resetToken, err := repo.ConsumePasswordResetToken(ctx, auth.HashToken(token), s.now())
		if err != nil {
			return fmt.Errorf("consume reset token: %w", err)
		}
		if resetToken == nil {
			return ErrInvalidResetToken
		}

		user, err := repo.GetUserByEmail(ctx, resetToken.Email)
		if err != nil {
			return fmt.Errorf("get user by email: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		userID = user.ID

		if _, err := repo.UpdateUserPassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		revoked, err = s.sessions.WithStore(repo).RevokeAll(ctx, user.ID, metrics.ReasonReset)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// allow applies the rate limiter. Limiter outages are logged and do not
// block the flow.
func (s *Service) allow(ctx context.Context, action, subject string) error {
	err := s.limiter.Allow(ctx, action, subject)
	if err == nil || errors.Is(err, ratelimit.ErrLimited) {
		return err
	}
	s.logger.WarnContext(ctx, "rate limiter unavailable", "action", action, "error", err)
	return nil
}
