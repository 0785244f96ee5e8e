package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginChallenge is a random string the identity signs with its current
// signing key to open a session. It lives in the key-value store.
type LoginChallenge struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}
