package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialize/internal/auth"
	"socialize/internal/config"
	"socialize/internal/ratelimit"
	"socialize/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dialWs(t *testing.T, url string, cookie *http.Cookie) (*gorillaws.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", SessionCookieName+"="+cookie.Value)
	}
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func writeFrame(t *testing.T, conn *gorillaws.Conn, eventType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(websocket.Envelope{Type: eventType, Payload: raw}))
}

func readFrame(t *testing.T, conn *gorillaws.Conn, eventType string) websocket.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env websocket.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == eventType {
			return env
		}
	}
}

func userIDOf(t *testing.T, env *testEnv, username string) int64 {
	t.Helper()
	user, err := env.store.GetUserByUsername(t.Context(), username)
	require.NoError(t, err)
	return user.ID
}

func TestAPI_Websocket_CookieIdentity(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "mia")
	id := userIDOf(t, env, "mia")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := dialWs(t, wsURL(srv, ""), cookie)
	require.NoError(t, err)

	writeFrame(t, conn, websocket.TypeAnnounceIdentity, websocket.AnnounceIdentity{UserID: id + 100})
	frame := readFrame(t, conn, websocket.TypeError)
	assert.Contains(t, string(frame.Payload), "another user")

	writeFrame(t, conn, websocket.TypeAnnounceIdentity, websocket.AnnounceIdentity{UserID: id})
	frame = readFrame(t, conn, websocket.TypePresenceSet)
	var entries []websocket.PresenceEntry
	require.NoError(t, json.Unmarshal(frame.Payload, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].UserID)

	rr := env.do(t, http.MethodGet, "/api/presence", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_ids":[`+jsonInt(id)+`]}`, rr.Body.String())
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestAPI_Websocket_Ticket(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "noah")
	id := userIDOf(t, env, "noah")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ticket, _, err := auth.GenerateRealtimeToken(id, "noah", env.cfg.JWT.Secret, time.Minute)
	require.NoError(t, err)

	conn, _, err := dialWs(t, wsURL(srv, "token="+ticket), nil)
	require.NoError(t, err)

	writeFrame(t, conn, websocket.TypeAnnounceIdentity, websocket.AnnounceIdentity{UserID: id + 1})
	readFrame(t, conn, websocket.TypeError)

	_, resp, err := dialWs(t, wsURL(srv, "token=garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Websocket_RequireIdentity(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ **ratelimit.Limiter) {
		cfg.Realtime.RequireIdentity = true
	})
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	_, resp, err := dialWs(t, wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cookie := env.register(t, "olga")
	_, _, err = dialWs(t, wsURL(srv, ""), cookie)
	require.NoError(t, err)
}

func TestAPI_Websocket_AnonymousRelay(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	alice, _, err := dialWs(t, wsURL(srv, ""), nil)
	require.NoError(t, err)
	bob, _, err := dialWs(t, wsURL(srv, ""), nil)
	require.NoError(t, err)

	writeFrame(t, alice, websocket.TypeAnnounceIdentity, websocket.AnnounceIdentity{UserID: 1})
	readFrame(t, alice, websocket.TypePresenceSet)
	writeFrame(t, bob, websocket.TypeAnnounceIdentity, websocket.AnnounceIdentity{UserID: 2})
	require.Eventually(t, func() bool { return env.hub.Registry().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	writeFrame(t, alice, websocket.TypeRelayMessage, websocket.RelayMessage{SenderID: 1, RecipientID: 2, Text: "ping"})
	frame := readFrame(t, bob, websocket.TypeIncomingMessage)

	var msg websocket.IncomingMessage
	require.NoError(t, json.Unmarshal(frame.Payload, &msg))
	assert.Equal(t, websocket.IncomingMessage{SenderID: 1, Text: "ping"}, msg)
}
