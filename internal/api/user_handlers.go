package api

import (
	"net/http"
)

// @Summary      Get current user
// @Description  Returns the profile of the user behind the session cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  ErrorResponse "Authentication required"
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/auth/me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	user, err := s.accounts.Me(r.Context(), identity.User.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type PresenceResponse struct {
	UserIDs []int64 `json:"user_ids"`
}

// @Summary      List online users
// @Description  Returns the ids of users currently present on the realtime channel.
// @Tags         realtime
// @Produce      json
// @Success      200  {object}  PresenceResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /api/presence [get]
func (s *Server) ListPresenceHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.hub.Registry().Snapshot()

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	writeJSON(w, http.StatusOK, PresenceResponse{UserIDs: ids})
}
