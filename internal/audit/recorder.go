// Package audit records security-relevant outcomes. Recording is best effort:
// a failed write is logged locally and never fails the audited operation.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"vibetrust/pkg/logger"

	"github.com/bwmarrin/snowflake"
)

type Recorder struct {
	repo   Appender
	node   *snowflake.Node
	salt   string
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(repo Appender, nodeID int64, ipSalt string, logger logger.Logger, now func() time.Time) (*Recorder, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{repo: repo, node: node, salt: ipSalt, logger: logger, now: now}, nil
}

// HashIP is SHA-256 over salt and address. Raw addresses are never stored.
func (r *Recorder) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(r.salt + ip))
	return hex.EncodeToString(sum[:])
}

// Record writes an event and returns its id.
func (r *Recorder) Record(ctx context.Context, typ EventType, handle string, d Details, meta RequestMeta) string {
	e := &Event{
		ID:        r.node.Generate().Int64(),
		EventType: typ,
		Handle:    handle,
		Details:   d,
		IPHash:    r.HashIP(meta.IP),
		UserAgent: meta.UserAgent,
		CreatedAt: r.now().UTC(),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		r.logger.Error("audit write failed",
			"audit_fallback", true,
			"err", err,
			"audit_id", e.ID,
			"event_type", e.EventType,
			"handle", e.Handle,
			"success", d.Success,
			"failure_reason", d.FailureReason,
			"old_key", d.OldKey,
			"new_key", d.NewKey,
			"ip_hash", e.IPHash,
		)
	}
	return e.IDString()
}

func (r *Recorder) AuditRotation(ctx context.Context, handle string, success bool, failureReason, oldKey, newKey string, meta RequestMeta) string {
	return r.Record(ctx, EventKeyRotation, handle, Details{
		OldKey:        oldKey,
		NewKey:        newKey,
		Success:       success,
		FailureReason: failureReason,
	}, meta)
}
