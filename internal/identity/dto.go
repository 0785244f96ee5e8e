package identity

import (
	"time"

	"vibetrust/internal/audit"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/recovery"

	"github.com/google/uuid"
)

// NOTE: commands travel from handler to usecase, DTOs travel back.

type RegisterCommand struct {
	Handle            string
	SigningPublicKey  string // ed25519:<base64>, raw or SPKI
	RecoveryPublicKey string // optional
	Meta              audit.RequestMeta
}

type HandleCheckCommand struct {
	Handle string
	Meta   audit.RequestMeta
}

type LoginChallengeCommand struct {
	Handle string
	Meta   audit.RequestMeta
}

type CompleteLoginCommand struct {
	ChallengeID uuid.UUID
	Signature   []byte // Ed25519 signature over the challenge string
	Meta        audit.RequestMeta
}

type RotateKeyCommand struct {
	Handle       string
	NewPublicKey string
	Proof        recovery.Proof
	Meta         audit.RequestMeta
}

type RevokeCommand struct {
	Handle string
	Proof  recovery.RevocationProof
	Meta   audit.RequestMeta
}

type InvalidateSessionsCommand struct {
	Handle string
	Token  string
	Meta   audit.RequestMeta
}

type IdentityDTO struct {
	Handle            string     `json:"handle"`
	SigningPublicKey  string     `json:"signing_public_key"`
	RecoveryPublicKey *string    `json:"recovery_public_key"`
	KeyRotatedAt      *time.Time `json:"key_rotated_at"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

type SessionDTO struct {
	Token     string           `json:"token"`
	SessionID string           `json:"session_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  *IdentityDTO     `json:"identity"`
	RateLimit ratelimit.Result `json:"-"`
}

type RegistrationDTO = SessionDTO

type HandleAvailabilityDTO struct {
	Handle    string           `json:"handle"`
	Available bool             `json:"available"`
	RateLimit ratelimit.Result `json:"-"`
}

type ChallengeDTO struct {
	ChallengeID uuid.UUID        `json:"challenge_id"`
	Challenge   string           `json:"challenge"`
	ExpiresIn   int              `json:"expires_in"`
	RateLimit   ratelimit.Result `json:"-"`
}

type RotationDTO struct {
	Identity  *IdentityDTO     `json:"identity"`
	AuditID   string           `json:"audit_id"`
	Warning   string           `json:"warning,omitempty"`
	RateLimit ratelimit.Result `json:"-"`
}

type RevocationDTO struct {
	Identity  *IdentityDTO     `json:"identity"`
	AuditID   string           `json:"audit_id"`
	Warning   string           `json:"warning,omitempty"`
	RateLimit ratelimit.Result `json:"-"`
}

type InvalidationDTO struct {
	Handle       string    `json:"handle"`
	KeyRotatedAt time.Time `json:"key_rotated_at"`
	AuditID      string    `json:"audit_id"`
}
