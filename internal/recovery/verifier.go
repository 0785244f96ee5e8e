package recovery

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"vibetrust/config"
	"vibetrust/internal/storage"
	"vibetrust/pkg/canonical"
	"vibetrust/pkg/errors"
	"vibetrust/pkg/logger"
)

const maxNonceLen = 128

// Result is a successful verification. Warning is set when the proof was
// accepted with enough clock skew that the client should resync.
type Result struct {
	Skew    time.Duration
	Warning string
}

type nonceRecord struct {
	Nonce     string    `json:"nonce"`
	Operation Operation `json:"operation"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Verifier struct {
	kv       storage.KeyValue
	maxSkew  time.Duration
	warnSkew time.Duration
	nonceTTL time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewVerifier(kv storage.KeyValue, cfg config.Rotation, logger logger.Logger, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	v := &Verifier{
		kv:       kv,
		maxSkew:  cfg.MaxSkew,
		warnSkew: cfg.WarnSkew,
		nonceTTL: cfg.NonceTTL,
		logger:   logger,
		now:      now,
	}
	if v.maxSkew <= 0 {
		v.maxSkew = 300 * time.Second
	}
	if v.warnSkew <= 0 {
		v.warnSkew = 60 * time.Second
	}
	if v.nonceTTL <= 0 {
		v.nonceTTL = time.Hour
	}
	return v
}

func nonceKey(op Operation, nonce string) string {
	return fmt.Sprintf("nonce:%s:%s", op, nonce)
}

// VerifyRotation checks, in order: proof shape and key match, timestamp
// window, recovery-key signature, and finally claims the nonce. The nonce is
// only consulted once the signature is known to be good.
func (v *Verifier) VerifyRotation(ctx context.Context, p Proof, recoveryKey ed25519.PublicKey, newPublicKey string) (Result, error) {
	if p.NewPublicKey == "" || p.Timestamp == 0 || p.Signature == "" || !validNonce(p.Nonce) {
		return Result{}, errors.ErrMalformedProof
	}
	if p.NewPublicKey != newPublicKey {
		return Result{}, errors.ErrMalformedProof.WithDetails(map[string]any{"field": "new_public_key"})
	}
	if _, err := canonical.ParseWirePublicKey(p.NewPublicKey); err != nil {
		return Result{}, errors.ErrInvalidKey.WithCause(err)
	}
	return v.verify(ctx, OpRotation, p.Timestamp, p.Nonce, p.Signature, p.signedFields(), recoveryKey)
}

func (v *Verifier) VerifyRevocation(ctx context.Context, p RevocationProof, recoveryKey ed25519.PublicKey) (Result, error) {
	if p.Action != RevokeAction || p.Timestamp == 0 || p.Signature == "" || !validNonce(p.Nonce) {
		return Result{}, errors.ErrMalformedProof
	}
	return v.verify(ctx, OpRevocation, p.Timestamp, p.Nonce, p.Signature, p.signedFields(), recoveryKey)
}

func (v *Verifier) verify(ctx context.Context, op Operation, ts int64, nonce, signature string, signed map[string]any, recoveryKey ed25519.PublicKey) (Result, error) {
	now := v.now()

	// Whole seconds: time.Duration saturates about 292 years out.
	nowSec := now.Unix()
	maxSec := int64(v.maxSkew / time.Second)
	if ts > nowSec+maxSec || ts < nowSec-maxSec {
		return Result{}, errors.ErrInvalidTimestamp.WithDetails(map[string]any{
			"timestamp":   ts,
			"server_time": nowSec,
			"max_seconds": maxSec,
		})
	}
	skew := time.Duration(nowSec-ts) * time.Second
	abs := skew
	if abs < 0 {
		abs = -abs
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return Result{}, errors.ErrInvalidSignature
	}
	ok, err := canonical.VerifyDetached(signed, sig, recoveryKey)
	if err != nil {
		return Result{}, errors.ErrInvalidSignature.WithCause(err)
	}
	if !ok {
		return Result{}, errors.ErrInvalidSignature
	}

	rec, err := json.Marshal(nonceRecord{Nonce: nonce, Operation: op, ExpiresAt: now.Add(v.nonceTTL)})
	if err != nil {
		return Result{}, errors.Internal("failed to encode nonce record")
	}
	claimed, err := v.kv.SetNX(ctx, nonceKey(op, nonce), rec, v.nonceTTL)
	if err != nil {
		v.logger.Error("nonce store unavailable", "operation", op, "err", err)
		return Result{}, errors.ErrStoreUnavailable(err)
	}
	if !claimed {
		return Result{}, errors.ErrReplayedNonce
	}

	res := Result{Skew: skew}
	if abs > v.warnSkew {
		res.Warning = fmt.Sprintf("clock skew of %ds detected, resync your clock", int64(abs/time.Second))
	}
	return res, nil
}

func validNonce(n string) bool {
	if n == "" || len(n) > maxNonceLen {
		return false
	}
	_, err := hex.DecodeString(n)
	return err == nil
}
