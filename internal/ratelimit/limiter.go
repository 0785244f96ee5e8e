// Package ratelimit counts requests per (category, identifier) in fixed
// windows held in the shared key-value store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"vibetrust/internal/storage"
	"vibetrust/pkg/errors"
	"vibetrust/pkg/logger"
)

// Result is the limiter's answer plus the metadata clients see as headers.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetEpoch int64
	// Degraded is set when the store was unreachable and the policy let the
	// request through.
	Degraded bool
}

// RetryAfter is the number of seconds until the window resets.
func (r Result) RetryAfter(now time.Time) int64 {
	d := r.ResetEpoch - now.Unix()
	if d < 0 {
		return 0
	}
	return d
}

type Limiter struct {
	kv       storage.KeyValue
	policies map[Category]Policy
	logger   logger.Logger
	now      func() time.Time
}

func New(kv storage.KeyValue, policies map[Category]Policy, logger logger.Logger, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Limiter{kv: kv, policies: policies, logger: logger, now: now}
}

func key(c Category, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", c, identifier)
}

// Check counts one request. Counts keep growing past the limit so hammering
// never shortens the window.
func (l *Limiter) Check(ctx context.Context, c Category, identifier string) (Result, error) {
	p, ok := l.policies[c]
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unknown category %q", c)
	}

	counter, err := l.kv.Incr(ctx, key(c, identifier), p.Window)
	if err != nil {
		now := l.now()
		res := Result{Limit: p.Limit, Remaining: p.Limit, ResetEpoch: now.Add(p.Window).Unix(), Degraded: true}
		if p.FailClosed {
			l.logger.Error("rate limit store unavailable, failing closed", "category", c, "err", err)
			res.Allowed = false
			res.Remaining = 0
			return res, errors.ErrStoreUnavailable(err)
		}
		l.logger.Warn("rate limit store unavailable, failing open", "category", c, "err", err)
		res.Allowed = true
		return res, nil
	}

	remaining := p.Limit - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    counter.Count <= p.Limit,
		Limit:      p.Limit,
		Remaining:  remaining,
		ResetEpoch: counter.ExpiresAt.Unix(),
	}, nil
}

// Enforce is Check turned into an error for rejected requests.
func (l *Limiter) Enforce(ctx context.Context, c Category, identifier string) (Result, error) {
	res, err := l.Check(ctx, c, identifier)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, RateLimitedError(res, l.now())
	}
	return res, nil
}

func RateLimitedError(res Result, now time.Time) error {
	return errors.ErrRateLimited.WithDetails(map[string]any{
		"limit":       res.Limit,
		"remaining":   res.Remaining,
		"reset_epoch": res.ResetEpoch,
		"retry_after": res.RetryAfter(now),
	})
}
