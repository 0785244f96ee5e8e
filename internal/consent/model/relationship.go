package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusBlocked  Status = "blocked"
)

// Relationship is directional: (from, to) and (to, from) are separate rows.
// Rows are never deleted, unblock moves a row back to none.
type Relationship struct {
	bun.BaseModel `bun:"table:consent_relationships" json:"-"`

	From string `bun:"from_handle,pk" json:"from"`
	To   string `bun:"to_handle,pk" json:"to"`

	Status  Status  `bun:",notnull,default:'none'" json:"status"`
	Message *string `json:"message,omitempty"`

	RequestedAt *time.Time `json:"requested_at"`
	RespondedAt *time.Time `json:"responded_at"`
	UpdatedAt   time.Time  `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Transition records one status change. Append only.
type Transition struct {
	bun.BaseModel `bun:"table:consent_transitions" json:"-"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	From       string    `bun:"from_handle,notnull" json:"from"`
	To         string    `bun:"to_handle,notnull" json:"to"`
	FromStatus Status    `bun:",notnull" json:"from_status"`
	ToStatus   Status    `bun:",notnull" json:"to_status"`
	Actor      string    `bun:",notnull" json:"actor"`
	At         time.Time `bun:",notnull" json:"at"`
}
