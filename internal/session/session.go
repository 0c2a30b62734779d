// Package session keeps login sessions behind a swappable Store.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const idLength = 32

// Session binds an opaque identifier to the user who logged in with it.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store maps session identifiers to sessions.
//
// Get reports absent (false, nil) for unknown and expired ids alike; an error
// is returned only when the backend itself fails. Destroy on an unknown id is
// not an error.
type Store interface {
	Get(ctx context.Context, id string) (Session, bool, error)
	Set(ctx context.Context, s Session) error
	Destroy(ctx context.Context, id string) error
}

// NewID returns a fresh url-safe session identifier.
func NewID() (string, error) {
	raw := make([]byte, idLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
