package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"socialize/internal/account"
	"socialize/internal/auth"
	"socialize/internal/config"
	"socialize/internal/database/memstore"
	"socialize/internal/events"
	"socialize/internal/ratelimit"
	"socialize/internal/session"
	"socialize/internal/websocket"

	"github.com/stretchr/testify/require"
)

type memTx struct {
	store *memstore.Store
}

func (t memTx) WithinTx(ctx context.Context, fn func(account.Repository) error) error {
	return fn(t.store)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// testClock reports the wall clock until set.
type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.at.IsZero() {
		return time.Now().UTC()
	}
	return c.at
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = at
}

type testEnv struct {
	cfg       *config.Config
	clock     *testClock
	server    *Server
	handler   http.Handler
	store     *memstore.Store
	sessions  *session.Service
	hub       *websocket.Hub
	publisher *recordingPublisher
}

func testConfig() *config.Config {
	return &config.Config{
		Env: config.EnvDevelopment,
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			FrontendURL:    "http://localhost:5173",
		},
		Auth: config.AuthConfig{
			BcryptCost:         4,
			SessionTTL:         7 * 24 * time.Hour,
			RenewThreshold:     24 * time.Hour,
			SessionTokenLength: 32,
			ResetTokenLength:   32,
			ResetTTL:           time.Hour,
			SweepInterval:      time.Minute,
			MinPasswordLength:  6,
		},
		JWT: config.JWTConfig{Secret: "api_test_secret", RealtimeTTL: time.Minute},
	}
}

type envOption func(cfg *config.Config, limiter **ratelimit.Limiter)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := testConfig()
	var limiter *ratelimit.Limiter
	for _, opt := range opts {
		opt(cfg, &limiter)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	clock := &testClock{}

	sessions, err := session.NewService(store, session.Options{
		TTL:            cfg.Auth.SessionTTL,
		RenewThreshold: cfg.Auth.RenewThreshold,
		TokenLength:    cfg.Auth.SessionTokenLength,
		Now:            clock.Now,
	})
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	accounts, err := account.NewService(account.Deps{
		Repo:      store,
		Tx:        memTx{store: store},
		Sessions:  sessions,
		Hasher:    auth.NewHasher(cfg.Auth.BcryptCost),
		Limiter:   limiter,
		Publisher: publisher,
		Logger:    logger,
	}, account.Config{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		ResetTTL:          cfg.Auth.ResetTTL,
		ResetTokenLength:  cfg.Auth.ResetTokenLength,
		FrontendURL:       cfg.HTTP.FrontendURL,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(websocket.NewRegistry(), logger)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := NewServer(cfg, store, accounts, sessions, hub, logger)
	return &testEnv{
		cfg:       cfg,
		clock:     clock,
		server:    server,
		handler:   server.Routes(),
		store:     store,
		sessions:  sessions,
		hub:       hub,
		publisher: publisher,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Username: username, Email: username + "@example.com", Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	return cookie
}

func (e *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email: username + "@example.com", Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	return cookie
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	if cookies := sessionCookies(rr); len(cookies) > 0 {
		return cookies[0]
	}
	return nil
}

func sessionCookies(rr *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			out = append(out, c)
		}
	}
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	return resp
}
