package usecase

import (
	"context"
	"crypto/ed25519"
	"strings"

	"vibetrust/internal/audit"
	"vibetrust/internal/identity"
	models "vibetrust/internal/identity/model"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/session"
	"vibetrust/pkg/canonical"
	"vibetrust/pkg/errors"
)

// loadForRecovery fetches handle and its recovery key, failing when the
// identity cannot take a recovery-key proof.
func (uc *IdentityUsecase) loadForRecovery(ctx context.Context, handle string) (*models.Identity, ed25519.PublicKey, error) {
	ident, err := uc.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	if !ident.Active() {
		return ident, nil, statusError(ident)
	}
	if ident.RecoveryPublicKey == nil || *ident.RecoveryPublicKey == "" {
		return ident, nil, errors.ErrRecoveryKeyMissing
	}
	pub, err := canonical.ParseWirePublicKey(*ident.RecoveryPublicKey)
	if err != nil {
		uc.logger.Error("stored recovery key is unreadable", "handle", handle, "err", err)
		return ident, nil, errors.Internal("recovery key unreadable")
	}
	return ident, pub, nil
}

// skipsAudit reports the rejections that are refused before any
// cryptographic work is spent on them.
func skipsAudit(err error) bool {
	return errors.ReasonOf(err) == errors.ReasonMalformedProof || errors.ReasonOf(err) == errors.ReasonInvalidKey
}

func (uc *IdentityUsecase) securitySignal(op, handle string, err error) {
	switch errors.ReasonOf(err) {
	case errors.ReasonReplayedNonce, errors.ReasonInvalidSignature:
		uc.logger.Warn("recovery proof rejected", "security_signal", true, "operation", op, "handle", handle, "reason", errors.ReasonOf(err))
	}
}

// RotateKey replaces the identity's signing key after checking a proof signed
// by its recovery key. Every prior session stops working.
func (uc *IdentityUsecase) RotateKey(ctx context.Context, cmd identity.RotateKeyCommand) (*identity.RotationDTO, error) {
	handle := strings.ToLower(cmd.Handle)

	rl, err := uc.limiter.Enforce(ctx, ratelimit.KeyRotation, handle)
	if err != nil {
		return nil, err
	}

	ident, recoveryKey, err := uc.loadForRecovery(ctx, handle)
	if err != nil {
		if ident != nil {
			uc.auditor.AuditRotation(ctx, handle, false, string(errors.ReasonOf(err)), ident.SigningPublicKey, cmd.NewPublicKey, cmd.Meta)
		}
		return nil, err
	}
	oldKey := ident.SigningPublicKey

	res, err := uc.verifier.VerifyRotation(ctx, cmd.Proof, recoveryKey, cmd.NewPublicKey)
	if err != nil {
		if !skipsAudit(err) {
			uc.securitySignal("rotation", handle, err)
			uc.auditor.AuditRotation(ctx, handle, false, string(errors.ReasonOf(err)), oldKey, cmd.NewPublicKey, cmd.Meta)
		}
		return nil, err
	}
	if res.Warning != "" {
		uc.logger.Warn("rotation accepted with clock skew", "handle", handle, "skew", res.Skew.String())
	}

	newKey, err := canonical.NormalizeWirePublicKey(cmd.NewPublicKey)
	if err != nil {
		return nil, errors.ErrInvalidKey.WithCause(err)
	}

	updated, err := uc.repo.ApplyRotation(ctx, handle, newKey, session.Watermark(uc.now().UTC()))
	if err != nil {
		uc.logger.Error("failed to apply rotation", "handle", handle, "err", err)
		uc.auditor.AuditRotation(ctx, handle, false, string(errors.ReasonOf(err)), oldKey, newKey, cmd.Meta)
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.ErrStoreUnavailable(err)
	}

	auditID := uc.auditor.AuditRotation(ctx, handle, true, "", oldKey, newKey, cmd.Meta)
	uc.logger.Info("signing key rotated", "handle", handle, "audit_id", auditID)

	return &identity.RotationDTO{
		Identity:  toDTO(updated),
		AuditID:   auditID,
		Warning:   res.Warning,
		RateLimit: rl,
	}, nil
}

// Revoke retires the identity permanently. There is no way back to active.
func (uc *IdentityUsecase) Revoke(ctx context.Context, cmd identity.RevokeCommand) (*identity.RevocationDTO, error) {
	handle := strings.ToLower(cmd.Handle)

	rl, err := uc.limiter.Enforce(ctx, ratelimit.Revocation, handle)
	if err != nil {
		return nil, err
	}

	record := func(success bool, reason, key string) string {
		return uc.auditor.Record(ctx, audit.EventRevocation, handle, audit.Details{
			OldKey:        key,
			Success:       success,
			FailureReason: reason,
		}, cmd.Meta)
	}

	ident, recoveryKey, err := uc.loadForRecovery(ctx, handle)
	if err != nil {
		if ident != nil {
			record(false, string(errors.ReasonOf(err)), ident.SigningPublicKey)
		}
		return nil, err
	}

	res, err := uc.verifier.VerifyRevocation(ctx, cmd.Proof, recoveryKey)
	if err != nil {
		if !skipsAudit(err) {
			uc.securitySignal("revocation", handle, err)
			record(false, string(errors.ReasonOf(err)), ident.SigningPublicKey)
		}
		return nil, err
	}

	updated, err := uc.repo.Revoke(ctx, handle, session.Watermark(uc.now().UTC()))
	if err != nil {
		record(false, string(errors.ReasonOf(err)), ident.SigningPublicKey)
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.ErrStoreUnavailable(err)
	}

	auditID := record(true, "", ident.SigningPublicKey)
	uc.logger.Info("identity revoked", "handle", handle, "audit_id", auditID)

	return &identity.RevocationDTO{
		Identity:  toDTO(updated),
		AuditID:   auditID,
		Warning:   res.Warning,
		RateLimit: rl,
	}, nil
}

// InvalidateAllSessions moves the session watermark to now. Sessions are not
// deleted; each is rejected the next time it is presented.
func (uc *IdentityUsecase) InvalidateAllSessions(ctx context.Context, cmd identity.InvalidateSessionsCommand) (*identity.InvalidationDTO, error) {
	handle := strings.ToLower(cmd.Handle)
	if _, err := uc.sessions.Require(ctx, cmd.Token, handle); err != nil {
		return nil, err
	}

	updated, err := uc.repo.SetKeyRotatedAt(ctx, handle, session.Watermark(uc.now().UTC()))
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.ErrStoreUnavailable(err)
	}

	auditID := uc.auditor.Record(ctx, audit.EventSessionInvalidated, handle, audit.Details{Success: true}, cmd.Meta)
	return &identity.InvalidationDTO{
		Handle:       handle,
		KeyRotatedAt: *updated.KeyRotatedAt,
		AuditID:      auditID,
	}, nil
}
