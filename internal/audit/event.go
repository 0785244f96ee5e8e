package audit

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

type EventType string

const (
	EventKeyRotation        EventType = "key_rotation"
	EventRevocation         EventType = "identity_revocation"
	EventSessionInvalidated EventType = "sessions_invalidated"
	EventRegistration       EventType = "identity_registered"
)

type Details struct {
	OldKey        string `json:"old_key,omitempty"`
	NewKey        string `json:"new_key,omitempty"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Event is append-only. Rows are never updated or deleted.
type Event struct {
	bun.BaseModel `bun:"table:audit_events"`

	ID        int64     `bun:",pk" json:"id,string"`
	EventType EventType `bun:",notnull" json:"event_type"`
	Handle    string    `bun:",notnull" json:"handle"`
	Details   Details   `bun:"type:jsonb" json:"details"`
	IPHash    string    `json:"ip_hash"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// RequestMeta describes the caller of an audited operation.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func (e Event) IDString() string { return strconv.FormatInt(e.ID, 10) }
