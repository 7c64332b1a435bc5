package api

import (
	"net/http"

	"socialize/internal/auth"
)

// @Summary      Open the realtime channel
// @Description  Upgrades to a websocket. The connection is identified by the session cookie or a ticket from /api/auth/realtime-token.
// @Tags         realtime
// @Param        token  query  string  false  "Realtime ticket"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Router       /ws [get]
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if identity := GetIdentityFromContext(r.Context()); identity != nil {
		userID = identity.User.ID
	}

	if tokenString := r.URL.Query().Get("token"); tokenString != "" {
		claims, err := auth.VerifyRealtimeToken(tokenString, s.config.JWT.Secret)
		if err != nil {
			s.logger.InfoContext(r.Context(), "realtime ticket rejected", "error", err)
			s.writeError(w, r, newAppError(http.StatusUnauthorized, "Invalid or expired realtime token"))
			return
		}
		if userID != 0 && userID != claims.UserID {
			s.writeError(w, r, newAppError(http.StatusUnauthorized, "Realtime token does not match session"))
			return
		}
		userID = claims.UserID
	}

	if userID == 0 && s.config.Realtime.RequireIdentity {
		s.writeError(w, r, newAppError(http.StatusUnauthorized, "Authentication required"))
		return
	}

	if err := s.hub.Serve(s.upgrader, w, r, userID); err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
	}
}
