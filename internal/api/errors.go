package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialize/internal/account"
	"socialize/internal/ratelimit"
)

// AppError is an error with a status code and a message that is safe to
// return to the client.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Authentication required"`
}

type MessageResponse struct {
	Message string `json:"message" example:"Logged out successfully"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// toAppError maps domain errors to their HTTP form. Anything unrecognised
// becomes a generic 500.
func toAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	var vErr *account.ValidationError
	if errors.As(err, &vErr) {
		return newAppError(http.StatusBadRequest, vErr.Message), true
	}

	switch {
	case errors.Is(err, account.ErrUserExists):
		return newAppError(http.StatusBadRequest, "User already exists with this email or username"), true
	case errors.Is(err, account.ErrInvalidCredentials):
		return newAppError(http.StatusUnauthorized, "Invalid email or password"), true
	case errors.Is(err, account.ErrInvalidResetToken):
		return newAppError(http.StatusBadRequest, "Invalid or expired reset token"), true
	case errors.Is(err, account.ErrUserNotFound):
		return newAppError(http.StatusNotFound, "User not found"), true
	case errors.Is(err, ratelimit.ErrLimited):
		return newAppError(http.StatusTooManyRequests, "Too many requests"), true
	}
	return newAppError(http.StatusInternalServerError, "Internal server error"), false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, known := toAppError(err)
	if !known {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, appErr.Status, ErrorResponse{Success: false, Error: appErr.Message})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return newAppError(http.StatusBadRequest, "Invalid request body")
	}
	return nil
}
