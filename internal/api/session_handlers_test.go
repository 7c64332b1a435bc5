package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"socialize/internal/auth"
	"socialize/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listSessions(t *testing.T, env *testEnv, cookie *http.Cookie) []models.Session {
	t.Helper()
	rr := env.do(t, http.MethodGet, "/api/auth/sessions", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
	return sessions
}

func TestAPI_ListSessions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ivy")
	laptop := env.login(t, "ivy")

	sessions := listSessions(t, env, laptop)
	require.Len(t, sessions, 2)
	assert.Equal(t, "192.0.2.1", sessions[0].IPAddress)
	assert.False(t, sessions[0].LastAccessed.Before(sessions[1].LastAccessed), "most recently used first")

	rr := env.do(t, http.MethodGet, "/api/auth/sessions", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	phone := env.register(t, "jack")
	laptop := env.login(t, "jack")
	stranger := env.register(t, "kim")

	stored, err := env.store.GetSessionByTokenHash(t.Context(), auth.HashToken(phone.Value))
	require.NoError(t, err)
	phoneID := stored.ID

	listed := false
	for _, s := range listSessions(t, env, laptop) {
		listed = listed || s.ID == phoneID
	}
	require.True(t, listed)

	t.Run("other user cannot revoke it", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/auth/sessions/"+phoneID.String(), nil, stranger)
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Session not found", decodeError(t, rr).Error)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/auth/sessions/not-a-uuid", nil, laptop)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("owner revokes it", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/auth/sessions/"+phoneID.String(), nil, laptop)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Session deleted successfully"}`, rr.Body.String())

		rr = env.do(t, http.MethodGet, "/api/auth/me", nil, phone)
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/auth/me", nil, laptop)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("already revoked", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/auth/sessions/"+phoneID.String(), nil, laptop)
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAPI_DeleteAllSessions(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t, "lena")
	second := env.login(t, "lena")

	rr := env.do(t, http.MethodDelete, "/api/auth/sessions", nil, second)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"2 sessions deleted successfully"}`, rr.Body.String())

	for _, c := range []*http.Cookie{first, second} {
		rr = env.do(t, http.MethodGet, "/api/auth/me", nil, c)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}
