package ratelimit

import (
	"time"

	"vibetrust/config"
)

type Category string

const (
	Registration  Category = "registration"
	MessageAuth   Category = "message_auth"
	MessageUnauth Category = "message_unauth"
	Heartbeat     Category = "heartbeat"
	HandleCheck   Category = "handle_check"
	KeyRotation   Category = "key_rotation"
	Revocation    Category = "revocation"
	Login         Category = "login"
	Consent       Category = "consent"
)

// Policy is the window and threshold for one category. FailClosed categories
// reject requests when the counter store is unreachable.
type Policy struct {
	Window     time.Duration
	Limit      int64
	FailClosed bool
}

// DefaultPolicies are used for any category missing from configuration.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		Registration:  {Window: time.Hour, Limit: 5},
		MessageAuth:   {Window: time.Minute, Limit: 60},
		MessageUnauth: {Window: time.Minute, Limit: 10},
		Heartbeat:     {Window: time.Minute, Limit: 6},
		HandleCheck:   {Window: time.Minute, Limit: 30},
		KeyRotation:   {Window: time.Hour, Limit: 1, FailClosed: true},
		Revocation:    {Window: 24 * time.Hour, Limit: 1, FailClosed: true},
		Login:         {Window: time.Minute, Limit: 10},
		Consent:       {Window: time.Minute, Limit: 20},
	}
}

// PoliciesFromConfig overlays configured limits on the defaults. A category
// keeps its default FailClosed unless the config sets it explicitly.
func PoliciesFromConfig(cfg map[string]config.RateLimit) map[Category]Policy {
	out := DefaultPolicies()
	for name, rl := range cfg {
		p := Policy{Window: rl.Window, Limit: rl.Limit, FailClosed: out[Category(name)].FailClosed}
		if rl.FailClosed != nil {
			p.FailClosed = *rl.FailClosed
		}
		out[Category(name)] = p
	}
	return out
}
