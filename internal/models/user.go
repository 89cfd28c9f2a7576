package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Username is the unique login and display name.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash. Never serialized.
	PasswordHash string `json:"-"`

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"-"`
}

// NewUser creates a user with a fresh ID.
func NewUser(username, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
