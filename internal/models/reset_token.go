package models

import "time"

type PasswordResetToken struct {
	ID        int64
	Email     string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}
