package account

import "errors"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError is returned for malformed input. Its message is shown to
// the client as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
