package api

import (
	"fmt"
	"net/http"

	"socialize/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	_ "socialize/internal/models"
)

// @Summary      List active sessions
// @Description  Lists the active sessions of the current user, most recently used first, so devices can be reviewed and signed out.
// @Tags         sessions
// @Produce      json
// @Success      200  {array}   models.Session
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/auth/sessions [get]
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	sessions, err := s.sessions.ListActive(r.Context(), identity.User.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// @Summary      Terminate a specific session
// @Description  Revokes one of the current user's sessions by its id.
// @Tags         sessions
// @Produce      json
// @Param        session_id  path      string  true  "ID of the session to terminate" format(uuid)
// @Success      200         {object}  MessageResponse
// @Failure      400         {object}  ErrorResponse "Invalid session ID format"
// @Failure      401         {object}  ErrorResponse
// @Failure      404         {object}  ErrorResponse "Session not found"
// @Failure      500         {object}  ErrorResponse
// @Router       /api/auth/sessions/{session_id} [delete]
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		s.writeError(w, r, newAppError(http.StatusBadRequest, "Invalid session ID format"))
		return
	}

	revoked, err := s.sessions.RevokeByID(r.Context(), identity.User.ID, sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !revoked {
		s.writeError(w, r, newAppError(http.StatusNotFound, "Session not found"))
		return
	}

	if sessionID == identity.Session.ID {
		s.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Session deleted successfully"})
}

// @Summary      Terminate all sessions
// @Description  Revokes every active session of the current user, including this one.
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  MessageResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/auth/sessions [delete]
func (s *Server) DeleteAllSessionsHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	count, err := s.sessions.RevokeAll(r.Context(), identity.User.ID, metrics.ReasonAll)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("%d sessions deleted successfully", count)})
}
