package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"vibetrust/config"
	"vibetrust/internal/audit"
	"vibetrust/internal/identity"
	models "vibetrust/internal/identity/model"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/recovery"
	"vibetrust/internal/session"
	"vibetrust/pkg/canonical"
	"vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/google/uuid"
)

type IdentityUsecase struct {
	repo     identity.Repository
	sessions session.Lookup
	limiter  *ratelimit.Limiter
	verifier *recovery.Verifier
	auditor  *audit.Recorder
	logger   logger.Logger
	config   config.Config
	now      func() time.Time
}

func NewIdentityUsecase(
	repo identity.Repository,
	sessions session.Lookup,
	limiter *ratelimit.Limiter,
	verifier *recovery.Verifier,
	auditor *audit.Recorder,
	logger logger.Logger,
	config config.Config,
) *IdentityUsecase {
	return &IdentityUsecase{
		repo:     repo,
		sessions: sessions,
		limiter:  limiter,
		verifier: verifier,
		auditor:  auditor,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

var _ identity.Usecase = (*IdentityUsecase)(nil)

var handleRegex = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

func normalizeHandle(handle string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(handle))
	if !handleRegex.MatchString(h) {
		return "", errors.ErrInvalidHandle
	}
	return h, nil
}

func toDTO(ident *models.Identity) *identity.IdentityDTO {
	return &identity.IdentityDTO{
		Handle:            ident.Handle,
		SigningPublicKey:  ident.SigningPublicKey,
		RecoveryPublicKey: ident.RecoveryPublicKey,
		KeyRotatedAt:      ident.KeyRotatedAt,
		Status:            string(ident.Status),
		CreatedAt:         ident.CreatedAt,
	}
}

func (uc *IdentityUsecase) Register(ctx context.Context, cmd identity.RegisterCommand) (*identity.RegistrationDTO, error) {
	rl, err := uc.limiter.Enforce(ctx, ratelimit.Registration, uc.auditor.HashIP(cmd.Meta.IP))
	if err != nil {
		return nil, err
	}

	handle, err := normalizeHandle(cmd.Handle)
	if err != nil {
		return nil, err
	}

	signingKey, err := canonical.NormalizeWirePublicKey(cmd.SigningPublicKey)
	if err != nil {
		return nil, errors.ErrInvalidKey.WithCause(err)
	}

	ident := &models.Identity{
		Handle:           handle,
		SigningPublicKey: signingKey,
		Status:           models.StatusActive,
	}
	if cmd.RecoveryPublicKey != "" {
		recoveryKey, err := canonical.NormalizeWirePublicKey(cmd.RecoveryPublicKey)
		if err != nil {
			return nil, errors.ErrInvalidKey.WithCause(err)
		}
		if recoveryKey == signingKey {
			return nil, errors.InvalidArg("recovery key must differ from the signing key")
		}
		ident.RecoveryPublicKey = &recoveryKey
	}

	if err := uc.repo.Create(ctx, ident); err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		uc.logger.Errorf("error while saving identity: %v", err)
		return nil, errors.ErrRegistrationFailed(err)
	}

	token, sess, err := uc.sessions.Issue(ctx, handle)
	if err != nil {
		return nil, err
	}

	uc.auditor.Record(ctx, audit.EventRegistration, handle, audit.Details{NewKey: signingKey, Success: true}, cmd.Meta)

	return &identity.SessionDTO{
		Token:     token,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Identity:  toDTO(ident),
		RateLimit: rl,
	}, nil
}

func (uc *IdentityUsecase) HandleAvailable(ctx context.Context, cmd identity.HandleCheckCommand) (*identity.HandleAvailabilityDTO, error) {
	rl, err := uc.limiter.Enforce(ctx, ratelimit.HandleCheck, uc.auditor.HashIP(cmd.Meta.IP))
	if err != nil {
		return nil, err
	}
	handle, err := normalizeHandle(cmd.Handle)
	if err != nil {
		return nil, err
	}
	exists, err := uc.repo.HandleExists(ctx, handle)
	if err != nil {
		uc.logger.Error("database error checking handle", "err", err)
		return nil, errors.Internal("internal server error")
	}
	return &identity.HandleAvailabilityDTO{Handle: handle, Available: !exists, RateLimit: rl}, nil
}

func (uc *IdentityUsecase) Get(ctx context.Context, handle string) (*identity.IdentityDTO, error) {
	ident, err := uc.repo.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return toDTO(ident), nil
}

func (uc *IdentityUsecase) CreateLoginChallenge(ctx context.Context, cmd identity.LoginChallengeCommand) (*identity.ChallengeDTO, error) {
	handle, err := normalizeHandle(cmd.Handle)
	if err != nil {
		return nil, err
	}
	rl, err := uc.limiter.Enforce(ctx, ratelimit.Login, handle)
	if err != nil {
		return nil, err
	}

	ident, err := uc.repo.GetByHandle(ctx, handle)
	if err != nil {
		uc.logger.Warn("login challenge requested for unknown handle", "handle", handle)
		return nil, err
	}
	if !ident.Active() {
		return nil, statusError(ident)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		uc.logger.Error("failed to generate challenge", "err", err)
		return nil, errors.Internal("crypto rand failed")
	}

	ttl := uc.config.Rotation.ChallengeTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	c := &models.LoginChallenge{
		ID:        uuid.New(),
		Handle:    handle,
		Challenge: base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: uc.now().Add(ttl),
	}
	if err := uc.repo.SaveLoginChallenge(ctx, c, ttl); err != nil {
		uc.logger.Error("failed to save login challenge", "err", err)
		return nil, errors.ErrStoreUnavailable(err)
	}

	return &identity.ChallengeDTO{
		ChallengeID: c.ID,
		Challenge:   c.Challenge,
		ExpiresIn:   int(ttl / time.Second),
		RateLimit:   rl,
	}, nil
}

func (uc *IdentityUsecase) CompleteLogin(ctx context.Context, cmd identity.CompleteLoginCommand) (*identity.SessionDTO, error) {
	challenge, err := uc.repo.GetLoginChallenge(ctx, cmd.ChallengeID)
	if err != nil {
		uc.logger.Warn("challenge not found", "challenge_id", cmd.ChallengeID, "err", err)
		return nil, errors.ErrInvalidChallenge
	}
	if !uc.now().Before(challenge.ExpiresAt) {
		return nil, errors.ErrInvalidChallenge
	}

	rl, err := uc.limiter.Enforce(ctx, ratelimit.Login, challenge.Handle)
	if err != nil {
		return nil, err
	}

	ident, err := uc.repo.GetByHandle(ctx, challenge.Handle)
	if err != nil {
		return nil, err
	}
	if !ident.Active() {
		return nil, statusError(ident)
	}

	pub, err := canonical.ParseWirePublicKey(ident.SigningPublicKey)
	if err != nil {
		uc.logger.Error("stored signing key is unreadable", "handle", ident.Handle, "err", err)
		return nil, errors.Internal("identity key unreadable")
	}
	ok, err := canonical.VerifyBytes([]byte(challenge.Challenge), cmd.Signature, pub)
	if err != nil || !ok {
		return nil, errors.ErrInvalidSignature
	}

	first, err := uc.repo.ConsumeLoginChallenge(ctx, challenge.ID, challenge.ExpiresAt.Sub(uc.now())+time.Minute)
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err)
	}
	if !first {
		return nil, errors.ErrInvalidChallenge
	}

	token, sess, err := uc.sessions.Issue(ctx, ident.Handle)
	if err != nil {
		return nil, err
	}
	return &identity.SessionDTO{
		Token:     token,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Identity:  toDTO(ident),
		RateLimit: rl,
	}, nil
}

func statusError(ident *models.Identity) error {
	if ident.Status == models.StatusRevoked {
		return errors.ErrIdentityRevoked
	}
	return errors.ErrIdentityInactive
}
