package models

import "time"

type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	ProfilePicture string    `json:"profile_picture" db:"profile_picture"`
	CoverPicture   string    `json:"cover_picture" db:"cover_picture"`
	Description    *string   `json:"description,omitempty" db:"description"`
	City           *string   `json:"city,omitempty" db:"city"`
	Hometown       *string   `json:"from,omitempty" db:"hometown"`
	IsAdmin        bool      `json:"is_admin" db:"is_admin"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
