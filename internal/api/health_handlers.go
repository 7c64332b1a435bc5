package api

import (
	"net/http"
)

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		s.writeError(w, r, newAppError(http.StatusServiceUnavailable, "Database unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
