package consent

import (
	"time"

	models "vibetrust/internal/consent/model"
	"vibetrust/internal/ratelimit"
)

type Action string

const (
	ActionRequest Action = "request"
	ActionAccept  Action = "accept"
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
)

type ActionCommand struct {
	Action  Action
	From    string
	To      string
	Message string
	Token   string
}

// StatusQuery reads (From, To) on behalf of Caller, who must be one of the pair.
type StatusQuery struct {
	From   string
	To     string
	Caller string
	Token  string
}

type DeliverQuery struct {
	Sender    string
	Recipient string
	Token     string
}

type TransitionDTO struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	At         time.Time `json:"at"`
}

type RelationshipDTO struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Status      string          `json:"status"`
	Message     *string         `json:"message,omitempty"`
	RequestedAt *time.Time      `json:"requested_at"`
	RespondedAt *time.Time      `json:"responded_at"`
	History     []TransitionDTO `json:"history,omitempty"`
}

type ActionDTO struct {
	Action       Action           `json:"action"`
	Changed      bool             `json:"changed"`
	Relationship *RelationshipDTO `json:"relationship"`
	RateLimit    ratelimit.Result `json:"-"`
}

type DeliverabilityDTO struct {
	Sender      string           `json:"sender"`
	Recipient   string           `json:"recipient"`
	Deliverable bool             `json:"deliverable"`
	RateLimit   ratelimit.Result `json:"-"`
}

func ToRelationshipDTO(rel *models.Relationship) *RelationshipDTO {
	return &RelationshipDTO{
		From:        rel.From,
		To:          rel.To,
		Status:      string(rel.Status),
		Message:     rel.Message,
		RequestedAt: rel.RequestedAt,
		RespondedAt: rel.RespondedAt,
	}
}
