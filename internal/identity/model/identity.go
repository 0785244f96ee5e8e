package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

type Identity struct {
	bun.BaseModel `bun:"table:identities" json:"-"`

	ID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()" json:"id"`

	// Handle is stored lowercased and is the identity's public name.
	Handle string `bun:",unique,notnull" json:"handle"`

	// Keys are kept in wire form, "ed25519:<base64 of the raw 32 bytes>".
	SigningPublicKey  string  `bun:",notnull" json:"signing_public_key"`
	RecoveryPublicKey *string `json:"recovery_public_key"`

	// KeyRotatedAt invalidates every session issued before it.
	KeyRotatedAt *time.Time `json:"key_rotated_at"`

	Status Status `bun:",notnull,default:'active'" json:"status"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (i *Identity) Active() bool { return i.Status == StatusActive }
