package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser removes sensitive fields for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// Pending is a registration waiting for its activation link to be followed.
type Pending struct {
	Email        string
	PasswordHash string
	ExpiresAt    time.Time
}

// Principal is the authenticated caller attached to a request by the Gate.
type Principal struct {
	SessionID string
	UserID    uuid.UUID
	Email     string
}
