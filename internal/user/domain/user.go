package domain

import (
	"errors"
	"time"
)

// User is the core user entity. Anonymous users have no email or password
// and exist only to anchor dashboard sessions.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Anonymous    bool
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if !u.Anonymous && u.Email == "" {
		return errors.New("email is required")
	}
	if !u.Anonymous && u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
