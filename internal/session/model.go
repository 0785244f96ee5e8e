package session

import "time"

type Session struct {
	ID        string    `json:"session_id"`
	Handle    string    `json:"handle"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal is what the guard needs to know about the identity behind a session.
type Principal struct {
	Handle       string
	Status       string
	KeyRotatedAt *time.Time
}

// Precision is the resolution timestamps keep after a round trip through
// Postgres.
const Precision = time.Microsecond

// Watermark rounds t up to Precision, so a session issued earlier within the
// same microsecond still sorts before it.
func Watermark(t time.Time) time.Time {
	w := t.Truncate(Precision)
	if w.Before(t) {
		w = w.Add(Precision)
	}
	return w
}

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)
