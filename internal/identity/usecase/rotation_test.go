package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"vibetrust/internal/identity"
	"vibetrust/internal/identity/mocks"
	models "vibetrust/internal/identity/model"
	"vibetrust/internal/identity/repository"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/recovery"
	"vibetrust/internal/storage"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registered struct {
	env      *testEnv
	signing  keypair
	recovery keypair
	token    string
}

// registerAlice runs against the real repository in key-value mode.
func registerAlice(t *testing.T, policies map[ratelimit.Category]ratelimit.Policy) *registered {
	t.Helper()
	clock := newClock()
	kv := storage.NewMemory(storage.WithClock(clock.Now))
	repo := repository.NewIdentityRepository(nil, kv, logger.Logger{})
	env := newTestEnv(t, repo, kv, clock, policies)

	r := &registered{env: env, signing: newKeypair(t), recovery: newKeypair(t)}
	out, err := env.uc.Register(context.Background(), identity.RegisterCommand{
		Handle:            "alice",
		SigningPublicKey:  r.signing.wire,
		RecoveryPublicKey: r.recovery.wire,
	})
	require.NoError(t, err)
	r.token = out.Token
	return r
}

func (r *registered) rotationCmd(t *testing.T, newKey string, at time.Time, nonce string) identity.RotateKeyCommand {
	t.Helper()
	p, err := recovery.SignRotation(r.recovery.priv, newKey, at, nonce)
	require.NoError(t, err)
	return identity.RotateKeyCommand{Handle: "alice", NewPublicKey: newKey, Proof: p}
}

func TestIdentityUsecase_RotateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path - key replaced and prior sessions rejected", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		next := newKeypair(t)

		_, err := r.env.guard.Require(ctx, r.token, "alice")
		require.NoError(t, err)

		r.env.clock.Advance(time.Second)
		out, err := r.env.uc.RotateKey(ctx, r.rotationCmd(t, next.wire, r.env.clock.Now(), "a1"))
		require.NoError(t, err)
		assert.Equal(t, next.wire, out.Identity.SigningPublicKey)
		assert.NotEmpty(t, out.AuditID)
		assert.Empty(t, out.Warning)

		_, err = r.env.guard.Require(ctx, r.token, "alice")
		assert.ErrorIs(t, err, appErrors.ErrSessionRotated)
	})

	t.Run("sad path - same proof twice is a replay", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		next := newKeypair(t)
		cmd := r.rotationCmd(t, next.wire, r.env.clock.Now(), "a2")

		_, err := r.env.uc.RotateKey(ctx, cmd)
		require.NoError(t, err)

		_, err = r.env.uc.RotateKey(ctx, cmd)
		assert.ErrorIs(t, err, appErrors.ErrReplayedNonce)

		got, err := r.env.uc.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, next.wire, got.SigningPublicKey)
	})

	t.Run("happy path - 299s old proof accepted with warning", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		next := newKeypair(t)

		out, err := r.env.uc.RotateKey(ctx, r.rotationCmd(t, next.wire, r.env.clock.Now().Add(-299*time.Second), "a3"))
		require.NoError(t, err)
		assert.NotEmpty(t, out.Warning)
	})

	t.Run("sad path - 301s old proof rejected", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		next := newKeypair(t)

		_, err := r.env.uc.RotateKey(ctx, r.rotationCmd(t, next.wire, r.env.clock.Now().Add(-301*time.Second), "a4"))
		assert.ErrorIs(t, err, appErrors.ErrInvalidTimestamp)

		got, _ := r.env.uc.Get(ctx, "alice")
		assert.Equal(t, r.signing.wire, got.SigningPublicKey)
	})

	t.Run("sad path - proof for key A cannot install key B", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		a, b := newKeypair(t), newKeypair(t)

		cmd := r.rotationCmd(t, a.wire, r.env.clock.Now(), "a5")
		cmd.NewPublicKey = b.wire
		_, err := r.env.uc.RotateKey(ctx, cmd)
		assert.ErrorIs(t, err, appErrors.ErrMalformedProof)
	})

	t.Run("sad path - signed with the signing key instead of the recovery key", func(t *testing.T) {
		r := registerAlice(t, relaxedPolicies())
		next := newKeypair(t)

		p, err := recovery.SignRotation(r.signing.priv, next.wire, r.env.clock.Now(), "a6")
		require.NoError(t, err)
		_, err = r.env.uc.RotateKey(ctx, identity.RotateKeyCommand{Handle: "alice", NewPublicKey: next.wire, Proof: p})
		assert.ErrorIs(t, err, appErrors.ErrInvalidSignature)
	})

	t.Run("sad path - second rotation within the hour is rate limited", func(t *testing.T) {
		r := registerAlice(t, ratelimit.DefaultPolicies())
		a, b := newKeypair(t), newKeypair(t)

		_, err := r.env.uc.RotateKey(ctx, r.rotationCmd(t, a.wire, r.env.clock.Now(), "a7"))
		require.NoError(t, err)

		_, err = r.env.uc.RotateKey(ctx, r.rotationCmd(t, b.wire, r.env.clock.Now(), "a8"))
		require.ErrorIs(t, err, appErrors.ErrRateLimited)
		ae, _ := appErrors.As(err)
		assert.EqualValues(t, 3600, ae.Details["retry_after"])
	})
}

func TestIdentityUsecase_RotateKey_ConcurrentExclusivity(t *testing.T) {
	r := registerAlice(t, relaxedPolicies())
	next := newKeypair(t)
	cmd := r.rotationCmd(t, next.wire, r.env.clock.Now(), "c0ffee")

	const callers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		replayed int
		other    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := r.env.uc.RotateKey(context.Background(), cmd)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case appErrors.ReasonOf(err) == appErrors.ReasonReplayedNonce:
				replayed++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, replayed)
	assert.Empty(t, other)

	got, err := r.env.uc.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, next.wire, got.SigningPublicKey)
}

func TestIdentityUsecase_RotateKey_Preconditions(t *testing.T) {
	ctx := context.Background()
	next := newKeypair(t)
	rec := newKeypair(t)

	t.Run("sad path - no recovery key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockRepository(ctrl)
		env := newTestEnv(t, mockRepo, storage.NewMemory(), newClock(), relaxedPolicies())

		mockRepo.EXPECT().GetByHandle(gomock.Any(), "alice").Return(&models.Identity{Handle: "alice", Status: models.StatusActive}, nil)

		_, err := env.uc.RotateKey(ctx, identity.RotateKeyCommand{Handle: "alice", NewPublicKey: next.wire})
		assert.ErrorIs(t, err, appErrors.ErrRecoveryKeyMissing)
	})

	t.Run("sad path - suspended identity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockRepository(ctrl)
		env := newTestEnv(t, mockRepo, storage.NewMemory(), newClock(), relaxedPolicies())

		mockRepo.EXPECT().GetByHandle(gomock.Any(), "alice").Return(&models.Identity{
			Handle: "alice", Status: models.StatusSuspended, RecoveryPublicKey: &rec.wire,
		}, nil)

		_, err := env.uc.RotateKey(ctx, identity.RotateKeyCommand{Handle: "alice", NewPublicKey: next.wire})
		assert.ErrorIs(t, err, appErrors.ErrIdentityInactive)
	})

	t.Run("sad path - unknown identity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockRepository(ctrl)
		env := newTestEnv(t, mockRepo, storage.NewMemory(), newClock(), relaxedPolicies())

		mockRepo.EXPECT().GetByHandle(gomock.Any(), "ghost").Return(nil, appErrors.ErrIdentityNotFound)

		_, err := env.uc.RotateKey(ctx, identity.RotateKeyCommand{Handle: "ghost", NewPublicKey: next.wire})
		assert.ErrorIs(t, err, appErrors.ErrIdentityNotFound)
	})

	t.Run("happy path - mocked apply receives normalised key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockRepository(ctrl)
		clock := newClock()
		env := newTestEnv(t, mockRepo, storage.NewMemory(), clock, relaxedPolicies())

		g := mockRepo.EXPECT()
		g.GetByHandle(gomock.Any(), "alice").Return(&models.Identity{
			Handle: "alice", Status: models.StatusActive, SigningPublicKey: "ed25519:old", RecoveryPublicKey: &rec.wire,
		}, nil)
		rotatedAt := clock.Now()
		g.ApplyRotation(gomock.Any(), "alice", next.wire, rotatedAt).Return(&models.Identity{
			Handle: "alice", Status: models.StatusActive, SigningPublicKey: next.wire, KeyRotatedAt: &rotatedAt,
		}, nil)

		p, err := recovery.SignRotation(rec.priv, next.wire, clock.Now(), "d1")
		require.NoError(t, err)
		out, err := env.uc.RotateKey(ctx, identity.RotateKeyCommand{Handle: "alice", NewPublicKey: next.wire, Proof: p})
		require.NoError(t, err)
		assert.Equal(t, next.wire, out.Identity.SigningPublicKey)
	})
}

func TestIdentityUsecase_Revoke(t *testing.T) {
	ctx := context.Background()
	r := registerAlice(t, relaxedPolicies())

	p, err := recovery.SignRevocation(r.recovery.priv, r.env.clock.Now(), "e1")
	require.NoError(t, err)

	r.env.clock.Advance(time.Second)
	out, err := r.env.uc.Revoke(ctx, identity.RevokeCommand{Handle: "alice", Proof: p})
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusRevoked), out.Identity.Status)

	t.Run("sad path - sessions die with the identity", func(t *testing.T) {
		_, err := r.env.guard.Require(ctx, r.token, "alice")
		assert.ErrorIs(t, err, appErrors.ErrIdentityRevoked)
	})

	t.Run("sad path - no rotation back to active", func(t *testing.T) {
		next := newKeypair(t)
		_, err := r.env.uc.RotateKey(ctx, r.rotationCmd(t, next.wire, r.env.clock.Now(), "e2"))
		assert.ErrorIs(t, err, appErrors.ErrIdentityRevoked)
	})

	t.Run("sad path - revoking twice", func(t *testing.T) {
		p2, err := recovery.SignRevocation(r.recovery.priv, r.env.clock.Now(), "e3")
		require.NoError(t, err)
		_, err = r.env.uc.Revoke(ctx, identity.RevokeCommand{Handle: "alice", Proof: p2})
		assert.ErrorIs(t, err, appErrors.ErrIdentityRevoked)
	})
}

func TestIdentityUsecase_InvalidateAllSessions(t *testing.T) {
	ctx := context.Background()
	r := registerAlice(t, relaxedPolicies())

	second, _, err := r.env.guard.Issue(ctx, "alice")
	require.NoError(t, err)

	r.env.clock.Advance(time.Second)
	out, err := r.env.uc.InvalidateAllSessions(ctx, identity.InvalidateSessionsCommand{Handle: "alice", Token: r.token})
	require.NoError(t, err)
	assert.Equal(t, r.env.clock.Now(), out.KeyRotatedAt)

	for _, tok := range []string{r.token, second} {
		_, err := r.env.guard.Require(ctx, tok, "alice")
		assert.ErrorIs(t, err, appErrors.ErrSessionRotated)
	}

	t.Run("happy path - new sessions work", func(t *testing.T) {
		fresh, _, err := r.env.guard.Issue(ctx, "alice")
		require.NoError(t, err)
		_, err = r.env.guard.Require(ctx, fresh, "alice")
		assert.NoError(t, err)
	})

	t.Run("sad path - requires a valid session", func(t *testing.T) {
		_, err := r.env.uc.InvalidateAllSessions(ctx, identity.InvalidateSessionsCommand{Handle: "alice", Token: r.token})
		assert.ErrorIs(t, err, appErrors.ErrSessionRotated)
	})
}
