package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"socialize/internal/auth"
	"socialize/internal/database/memstore"
	"socialize/internal/events"
	"socialize/internal/ratelimit"
	"socialize/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTx struct {
	store *memstore.Store
}

func (t memTx) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return fn(t.store)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// testClock reports the wall clock until set.
type testClock struct {
	at time.Time
}

func (c *testClock) Now() time.Time {
	if c.at.IsZero() {
		return time.Now().UTC()
	}
	return c.at
}

type fixture struct {
	svc       *Service
	store     *memstore.Store
	sessions  *session.Service
	clock     *testClock
	publisher *recordingPublisher
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()

	store := memstore.New()
	clock := &testClock{}
	sessions, err := session.NewService(store, session.Options{
		TTL: 7 * 24 * time.Hour, RenewThreshold: 24 * time.Hour, TokenLength: 32, Now: clock.Now,
	})
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc, err := NewService(Deps{
		Repo:      store,
		Tx:        memTx{store: store},
		Sessions:  sessions,
		Hasher:    auth.NewHasher(4),
		Limiter:   limiter,
		Publisher: publisher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Config{
		MinPasswordLength: 6,
		ResetTTL:          time.Hour,
		ResetTokenLength:  32,
		FrontendURL:       "http://localhost:5173/",
	})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, sessions: sessions, clock: clock, publisher: publisher}
}

func (f *fixture) register(t *testing.T, username string) *Result {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username, Email: username + "@example.com", Password: "secret123",
	}, session.ClientMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return res
}

func requireValidation(t *testing.T, err error) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestRegister(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterInput{
		Username: " alice ", Email: "Alice@Example.com", Password: "secret123",
	}, session.ClientMeta{UserAgent: "ua", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEqual(t, "secret123", res.User.PasswordHash)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, res.Session.CreatedAt.Add(7*24*time.Hour), res.Session.ExpiresAt)

	_, ok, err := f.sessions.Validate(ctx, res.Token)
	require.NoError(t, err)
	require.True(t, ok, "registration logs the user in")

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.svc.Register(ctx, RegisterInput{
			Username: "alice", Email: "other@example.com", Password: "secret123",
		}, session.ClientMeta{})
		require.ErrorIs(t, err, ErrUserExists)
	})

	testCases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing fields", RegisterInput{Username: "bob"}},
		{"short username", RegisterInput{Username: "bo", Email: "bo@example.com", Password: "secret123"}},
		{"long username", RegisterInput{Username: "abcdefghijklmnopqrstu", Email: "x@example.com", Password: "secret123"}},
		{"email without at", RegisterInput{Username: "bobby", Email: "bobby.example.com", Password: "secret123"}},
		{"short password", RegisterInput{Username: "bobby", Email: "bobby@example.com", Password: "123"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.in, session.ClientMeta{})
			requireValidation(t, err)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	registered := f.register(t, "carol")

	res, err := f.svc.Login(ctx, LoginInput{Email: "CAROL@example.com", Password: "secret123"}, session.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, res.User.ID)
	assert.NotEqual(t, registered.Token, res.Token, "each login gets its own session")

	sessions, err := f.sessions.ListActive(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = f.svc.Login(ctx, LoginInput{Email: "carol@example.com", Password: "wrong-pass"}, session.ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret123"}, session.ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials, "unknown emails look like wrong passwords")

	_, err = f.svc.Login(ctx, LoginInput{Email: "carol@example.com"}, session.ClientMeta{})
	requireValidation(t, err)
}

func TestLoginRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, ratelimit.New(rdb, 2, time.Minute))
	f.register(t, "dana")
	ctx := context.Background()

	for range 2 {
		_, err := f.svc.Login(ctx, LoginInput{Email: "dana@example.com", Password: "bad-pass"}, session.ClientMeta{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := f.svc.Login(ctx, LoginInput{Email: "dana@example.com", Password: "secret123"}, session.ClientMeta{})
	require.ErrorIs(t, err, ratelimit.ErrLimited)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := f.register(t, "erin")

	require.NoError(t, f.svc.Logout(ctx, res.Token))
	require.NoError(t, f.svc.Logout(ctx, res.Token), "logout is idempotent")
	require.NoError(t, f.svc.Logout(ctx, ""))

	identity, err := f.svc.Resolve(ctx, res.Token)
	require.NoError(t, err)
	require.Nil(t, identity)
}

func TestMe(t *testing.T) {
	f := newFixture(t, nil)
	res := f.register(t, "fred")

	user, err := f.svc.Me(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "fred", user.Username)

	_, err = f.svc.Me(context.Background(), 9999)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.register(t, "gina")

		identity, err := f.svc.Resolve(ctx, res.Token)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, res.User.ID, identity.User.ID)
		assert.Equal(t, res.Session.ID, identity.Session.ID)
		assert.False(t, identity.Renewed)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t, nil)
		identity, err := f.svc.Resolve(ctx, "")
		require.NoError(t, err)
		require.Nil(t, identity)

		identity, err = f.svc.Resolve(ctx, "bogus")
		require.NoError(t, err)
		require.Nil(t, identity)
	})

	t.Run("orphaned session is revoked", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.register(t, "hank")
		f.store.DeleteUser(res.User.ID)

		identity, err := f.svc.Resolve(ctx, res.Token)
		require.NoError(t, err)
		require.Nil(t, identity)

		stored, err := f.store.GetSessionByTokenHash(ctx, auth.HashToken(res.Token))
		require.NoError(t, err)
		assert.Equal(t, "revoked", string(stored.Status))
	})

	t.Run("renews close to expiry", func(t *testing.T) {
		f := newFixture(t, nil)
		start := time.Now().UTC()
		f.clock.at = start
		res := f.register(t, "ivan")

		later := start.Add(6*24*time.Hour + 12*time.Hour)
		f.clock.at = later

		identity, err := f.svc.Resolve(ctx, res.Token)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.Renewed)

		stored, err := f.store.GetSessionByTokenHash(ctx, auth.HashToken(res.Token))
		require.NoError(t, err)
		assert.Equal(t, later.Add(7*24*time.Hour), stored.ExpiresAt)
	})

	t.Run("store fault surfaces as error", func(t *testing.T) {
		f := newFixture(t, nil)
		res := f.register(t, "jill")
		f.store.Err = memstore.ErrUnavailable

		identity, err := f.svc.Resolve(ctx, res.Token)
		require.ErrorIs(t, err, memstore.ErrUnavailable)
		require.Nil(t, identity)
	})
}

func resetTokenFromEvent(t *testing.T, event events.Event) string {
	t.Helper()
	payload, ok := event.Payload.(events.PasswordResetRequested)
	require.True(t, ok)
	u, err := url.Parse(payload.ResetURL)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := f.register(t, "kate")
	second, err := f.svc.Login(ctx, LoginInput{Email: "kate@example.com", Password: "secret123"}, session.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "kate@example.com", "10.0.0.1"))

	event := f.publisher.last()
	require.Equal(t, events.TypePasswordResetRequested, event.Type)
	payload := event.Payload.(events.PasswordResetRequested)
	assert.Equal(t, "kate", payload.Username)
	assert.Contains(t, payload.ResetURL, "http://localhost:5173/reset-password?token=")

	tokens := f.store.ResetTokens("kate@example.com")
	require.Len(t, tokens, 1)
	assert.False(t, tokens[0].Used)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tokens[0].ExpiresAt, time.Minute)

	token := resetTokenFromEvent(t, event)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new-pass", "10.0.0.1"))

	tokens = f.store.ResetTokens("kate@example.com")
	assert.True(t, tokens[0].Used)

	for _, old := range []string{res.Token, second.Token} {
		identity, err := f.svc.Resolve(ctx, old)
		require.NoError(t, err)
		require.Nil(t, identity, "reset revokes every prior session")
	}

	_, err = f.svc.Login(ctx, LoginInput{Email: "kate@example.com", Password: "secret123"}, session.ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Email: "kate@example.com", Password: "brand-new-pass"}, session.ClientMeta{})
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, "another-pass", "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidResetToken, "tokens are single use")
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com", "10.0.0.1"))
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.store.ResetTokens("ghost@example.com"))

	requireValidation(t, f.svc.RequestPasswordReset(context.Background(), " ", "10.0.0.1"))
}

func TestRequestPasswordReset_PublishFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "liam")
	f.publisher.err = errors.New("broker down")

	err := f.svc.RequestPasswordReset(context.Background(), "liam@example.com", "10.0.0.1")
	require.Error(t, err)
}

func TestRequestPasswordReset_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, ratelimit.New(rdb, 1, time.Minute))
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@example.com", "10.0.0.9"))
	err := f.svc.RequestPasswordReset(ctx, "b@example.com", "10.0.0.9")
	require.ErrorIs(t, err, ratelimit.ErrLimited)
}

func TestResetPassword_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	requireValidation(t, f.svc.ResetPassword(ctx, "", "secret123", "ip"))
	requireValidation(t, f.svc.ResetPassword(ctx, "token", "", "ip"))
	requireValidation(t, f.svc.ResetPassword(ctx, "token", "123", "ip"))
	require.ErrorIs(t, f.svc.ResetPassword(ctx, "unknown-token", "secret123", "ip"), ErrInvalidResetToken)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.register(t, "mona")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "mona@example.com", "10.0.0.1"))
	token := resetTokenFromEvent(t, f.publisher.last())

	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	require.ErrorIs(t, f.svc.ResetPassword(ctx, token, "secret456", "10.0.0.1"), ErrInvalidResetToken)
}
