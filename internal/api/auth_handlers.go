package api

import (
	"errors"
	"net/http"
	"time"

	"socialize/internal/account"
	"socialize/internal/auth"
	"socialize/internal/ratelimit"

	_ "socialize/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret123"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret123"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
	NewPassword string `json:"newPassword" example:"new-secret123"`
}

type RealtimeTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent to your email address."

// @Summary      Register a new user
// @Description  Creates an account and logs it in by setting the session_id cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "New account"
// @Success      201              {object}  models.User
// @Failure      400              {object}  ErrorResponse "Validation failed or user already exists"
// @Failure      500              {object}  ErrorResponse
// @Router       /api/auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.accounts.Register(r.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

// @Summary      Log in
// @Description  Verifies credentials and starts a new session. Each login gets its own session, so several devices can stay signed in.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      LoginRequest  true  "Credentials"
// @Success      200           {object}  models.User
// @Failure      400           {object}  ErrorResponse
// @Failure      401           {object}  ErrorResponse "Invalid email or password"
// @Failure      429           {object}  ErrorResponse
// @Failure      500           {object}  ErrorResponse
// @Router       /api/auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.accounts.Login(r.Context(), account.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.User)
}

// @Summary      Log out
// @Description  Revokes the current session and clears the cookie. Succeeds without a session too.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  MessageResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), sessionToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// @Summary      Request a password reset
// @Description  Issues a one-hour reset token and hands the reset link to the mailer. Always reports success so account existence is not revealed.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        forgotPasswordRequest  body      ForgotPasswordRequest  true  "Account email"
// @Success      200                    {object}  MessageResponse
// @Failure      400                    {object}  ErrorResponse
// @Failure      429                    {object}  ErrorResponse
// @Router       /api/auth/forgot-password [post]
func (s *Server) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.accounts.RequestPasswordReset(r.Context(), req.Email, clientIP(r))
	if err != nil {
		var vErr *account.ValidationError
		if errors.As(err, &vErr) || errors.Is(err, ratelimit.ErrLimited) {
			s.writeError(w, r, err)
			return
		}
		s.logger.ErrorContext(r.Context(), "password reset request failed", "error", err)
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

// @Summary      Reset password
// @Description  Consumes a reset token, sets the new password and signs the user out everywhere.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        resetPasswordRequest  body      ResetPasswordRequest  true  "Token and new password"
// @Success      200                   {object}  MessageResponse
// @Failure      400                   {object}  ErrorResponse "Invalid or expired reset token"
// @Failure      429                   {object}  ErrorResponse
// @Failure      500                   {object}  ErrorResponse
// @Router       /api/auth/reset-password [post]
func (s *Server) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword, clientIP(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully. Please log in with your new password."})
}

// @Summary      Issue a realtime ticket
// @Description  Returns a short-lived token for opening /ws?token=... from origins that cannot send the session cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  RealtimeTokenResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/auth/realtime-token [get]
func (s *Server) RealtimeTokenHandler(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	token, expiresAt, err := auth.GenerateRealtimeToken(identity.User.ID, identity.User.Username, s.config.JWT.Secret, s.config.JWT.RealtimeTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RealtimeTokenResponse{Token: token, ExpiresAt: expiresAt})
}
