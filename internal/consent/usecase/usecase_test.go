package usecase

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"vibetrust/internal/consent"
	"vibetrust/internal/consent/mocks"
	models "vibetrust/internal/consent/model"
	"vibetrust/internal/consent/repository"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/session"
	"vibetrust/internal/storage"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type principals map[string]session.Principal

func (p principals) LookupPrincipal(_ context.Context, handle string) (session.Principal, error) {
	pr, ok := p[handle]
	if !ok {
		return session.Principal{}, appErrors.ErrIdentityNotFound
	}
	return pr, nil
}

type testEnv struct {
	uc         *ConsentUsecase
	guard      *session.Guard
	principals principals
	clock      *testClock
}

func relaxedPolicies() map[ratelimit.Category]ratelimit.Policy {
	p := ratelimit.DefaultPolicies()
	for c, pol := range p {
		pol.Limit = 1000
		p[c] = pol
	}
	return p
}

func newTestEnv(t *testing.T, repo consent.Repository, policies map[ratelimit.Category]ratelimit.Policy) *testEnv {
	t.Helper()
	log := logger.Logger{}
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	kv := storage.NewMemory(storage.WithClock(clock.Now))

	ps := principals{}
	for _, h := range []string{"alice", "bob", "carol"} {
		ps[h] = session.Principal{Handle: h, Status: session.StatusActive}
	}

	guard := session.NewGuard(
		session.NewAuthority("test-secret"),
		session.NewStore(kv, time.Hour, clock.Now),
		ps,
		log,
	)
	if repo == nil {
		repo = repository.NewConsentRepository(nil, kv, log)
	}
	uc := NewConsentUsecase(repo, guard, ps, ratelimit.New(kv, policies, log, clock.Now), log)
	uc.now = clock.Now
	return &testEnv{uc: uc, guard: guard, principals: ps, clock: clock}
}

func (e *testEnv) token(t *testing.T, handle string) string {
	t.Helper()
	tok, _, err := e.guard.Issue(context.Background(), handle)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) status(t *testing.T, from, to string) string {
	t.Helper()
	out, err := e.uc.Status(context.Background(), consent.StatusQuery{From: from, To: to, Caller: from, Token: e.token(t, from)})
	require.NoError(t, err)
	return out.Status
}

func (e *testEnv) apply(action consent.Action, from, to, token string) (*consent.ActionDTO, error) {
	return e.uc.Apply(context.Background(), consent.ActionCommand{Action: action, From: from, To: to, Token: token})
}

func TestConsentUsecase_Reciprocity(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice, bob := env.token(t, "alice"), env.token(t, "bob")

	out, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "pending", out.Relationship.Status)
	assert.Equal(t, "none", env.status(t, "bob", "alice"))

	out, err = env.apply(consent.ActionAccept, "alice", "bob", bob)
	require.NoError(t, err)
	assert.Equal(t, "accepted", out.Relationship.Status)

	assert.Equal(t, "accepted", env.status(t, "alice", "bob"))
	assert.Equal(t, "accepted", env.status(t, "bob", "alice"))

	rel, err := env.uc.Status(context.Background(), consent.StatusQuery{From: "alice", To: "bob", Caller: "bob", Token: bob})
	require.NoError(t, err)
	require.Len(t, rel.History, 2)
	assert.Equal(t, "none", rel.History[0].FromStatus)
	assert.Equal(t, "pending", rel.History[0].ToStatus)
	assert.Equal(t, "alice", rel.History[0].Actor)
	assert.Equal(t, "accepted", rel.History[1].ToStatus)
	assert.Equal(t, "bob", rel.History[1].Actor)
}

func TestConsentUsecase_AcceptIsAuthorizedOnRecipient(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice := env.token(t, "alice")

	_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.NoError(t, err)

	t.Run("sad path - requester cannot accept their own request", func(t *testing.T) {
		_, err := env.apply(consent.ActionAccept, "alice", "bob", alice)
		assert.ErrorIs(t, err, appErrors.ErrHandleMismatch)
		assert.Equal(t, "pending", env.status(t, "alice", "bob"))
	})

	t.Run("sad path - missing token", func(t *testing.T) {
		_, err := env.apply(consent.ActionAccept, "alice", "bob", "")
		assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	})

	t.Run("sad path - third party token", func(t *testing.T) {
		_, err := env.apply(consent.ActionBlock, "alice", "bob", env.token(t, "carol"))
		assert.ErrorIs(t, err, appErrors.ErrHandleMismatch)
	})
}

func TestConsentUsecase_BlockSupersedesPending(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice, bob := env.token(t, "alice"), env.token(t, "bob")

	_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.NoError(t, err)

	out, err := env.apply(consent.ActionBlock, "alice", "bob", bob)
	require.NoError(t, err)
	assert.Equal(t, "blocked", out.Relationship.Status)

	_, err = env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.ErrorIs(t, err, appErrors.ErrConsentBlocked)
	assert.Equal(t, "blocked", env.status(t, "alice", "bob"))

	out, err = env.apply(consent.ActionBlock, "alice", "bob", bob)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	out, err = env.apply(consent.ActionUnblock, "alice", "bob", bob)
	require.NoError(t, err)
	assert.Equal(t, "none", out.Relationship.Status)

	out, err = env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.NoError(t, err)
	assert.Equal(t, "pending", out.Relationship.Status)
}

func TestConsentUsecase_StateErrors(t *testing.T) {
	t.Run("sad path - accept without request", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		_, err := env.apply(consent.ActionAccept, "alice", "bob", env.token(t, "bob"))
		assert.ErrorIs(t, err, appErrors.ErrNoPendingRequest)
		assert.Equal(t, appErrors.ReasonNoPendingRequest, appErrors.ReasonOf(err))
	})

	t.Run("sad path - accept twice", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		bob := env.token(t, "bob")
		_, err := env.apply(consent.ActionRequest, "alice", "bob", env.token(t, "alice"))
		require.NoError(t, err)
		_, err = env.apply(consent.ActionAccept, "alice", "bob", bob)
		require.NoError(t, err)

		_, err = env.apply(consent.ActionAccept, "alice", "bob", bob)
		assert.ErrorIs(t, err, appErrors.ErrAlreadyAccepted)
	})

	t.Run("sad path - unblock when not blocked", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		_, err := env.apply(consent.ActionUnblock, "alice", "bob", env.token(t, "bob"))
		assert.ErrorIs(t, err, appErrors.ErrNotBlocked)
	})

	t.Run("happy path - repeated request is a no-op", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		alice := env.token(t, "alice")
		_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
		require.NoError(t, err)

		out, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, "pending", out.Relationship.Status)
	})

	t.Run("happy path - request after accept is a no-op", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		alice := env.token(t, "alice")
		_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
		require.NoError(t, err)
		_, err = env.apply(consent.ActionAccept, "alice", "bob", env.token(t, "bob"))
		require.NoError(t, err)

		out, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, "accepted", out.Relationship.Status)
	})

	t.Run("happy path - accepting a blocked pair lifts the block", func(t *testing.T) {
		env := newTestEnv(t, nil, relaxedPolicies())
		bob := env.token(t, "bob")
		_, err := env.apply(consent.ActionBlock, "alice", "bob", bob)
		require.NoError(t, err)

		out, err := env.apply(consent.ActionAccept, "alice", "bob", bob)
		require.NoError(t, err)
		assert.Equal(t, "accepted", out.Relationship.Status)
	})
}

func TestConsentUsecase_Validation(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice := env.token(t, "alice")

	t.Run("sad path - self request", func(t *testing.T) {
		_, err := env.apply(consent.ActionRequest, "alice", "ALICE", alice)
		assert.ErrorIs(t, err, appErrors.ErrSelfConsent)
	})

	t.Run("sad path - unknown action", func(t *testing.T) {
		_, err := env.apply("befriend", "alice", "bob", alice)
		assert.Equal(t, appErrors.ReasonInvalidArgument, appErrors.ReasonOf(err))
	})

	t.Run("sad path - unknown recipient", func(t *testing.T) {
		_, err := env.apply(consent.ActionRequest, "alice", "mallory", alice)
		assert.ErrorIs(t, err, appErrors.ErrIdentityNotFound)
	})

	t.Run("sad path - revoked recipient", func(t *testing.T) {
		env.principals["carol"] = session.Principal{Handle: "carol", Status: session.StatusRevoked}
		_, err := env.apply(consent.ActionRequest, "alice", "carol", alice)
		assert.ErrorIs(t, err, appErrors.ErrIdentityInactive)
	})

	t.Run("sad path - message too long", func(t *testing.T) {
		long := make([]rune, maxMessageLength+1)
		for i := range long {
			long[i] = 'é'
		}
		_, err := env.uc.Apply(context.Background(), consent.ActionCommand{
			Action: consent.ActionRequest, From: "alice", To: "bob", Message: string(long), Token: alice,
		})
		assert.Equal(t, appErrors.ReasonInvalidArgument, appErrors.ReasonOf(err))
	})
}

func TestConsentUsecase_RotatedSessionIsRejected(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice := env.token(t, "alice")

	env.clock.Advance(time.Second)
	rotated := env.clock.Now()
	env.principals["alice"] = session.Principal{Handle: "alice", Status: session.StatusActive, KeyRotatedAt: &rotated}

	_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	assert.ErrorIs(t, err, appErrors.ErrSessionRotated)

	_, err = env.apply(consent.ActionRequest, "alice", "bob", env.token(t, "alice"))
	assert.NoError(t, err)
}

func TestConsentUsecase_RateLimit(t *testing.T) {
	policies := relaxedPolicies()
	policies[ratelimit.Consent] = ratelimit.Policy{Window: time.Minute, Limit: 2}
	env := newTestEnv(t, nil, policies)
	alice := env.token(t, "alice")

	for i := 0; i < 2; i++ {
		_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
		require.NoError(t, err)
	}
	_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.ErrorIs(t, err, appErrors.ErrRateLimited)

	ae, ok := appErrors.As(err)
	require.True(t, ok)
	assert.EqualValues(t, 60, ae.Details["retry_after"])

	// bob's budget is separate
	_, err = env.apply(consent.ActionBlock, "alice", "bob", env.token(t, "bob"))
	assert.NoError(t, err)
}

func TestConsentUsecase_CanDeliver(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())
	alice, bob := env.token(t, "alice"), env.token(t, "bob")

	deliverable := func(sender, recipient, token string) bool {
		out, err := env.uc.CanDeliver(context.Background(), consent.DeliverQuery{Sender: sender, Recipient: recipient, Token: token})
		require.NoError(t, err)
		return out.Deliverable
	}

	assert.False(t, deliverable("alice", "bob", alice))

	_, err := env.apply(consent.ActionRequest, "alice", "bob", alice)
	require.NoError(t, err)
	assert.False(t, deliverable("alice", "bob", alice))

	_, err = env.apply(consent.ActionAccept, "alice", "bob", bob)
	require.NoError(t, err)
	assert.True(t, deliverable("alice", "bob", alice))
	assert.True(t, deliverable("bob", "alice", bob))

	_, err = env.apply(consent.ActionBlock, "alice", "bob", bob)
	require.NoError(t, err)
	assert.False(t, deliverable("alice", "bob", alice))
	assert.True(t, deliverable("bob", "alice", bob))

	t.Run("sad path - token must belong to the sender", func(t *testing.T) {
		_, err := env.uc.CanDeliver(context.Background(), consent.DeliverQuery{Sender: "alice", Recipient: "bob", Token: bob})
		assert.ErrorIs(t, err, appErrors.ErrHandleMismatch)
	})
}

func TestConsentUsecase_Status(t *testing.T) {
	env := newTestEnv(t, nil, relaxedPolicies())

	t.Run("happy path - unknown pair reads as none", func(t *testing.T) {
		assert.Equal(t, "none", env.status(t, "alice", "bob"))
	})

	t.Run("sad path - outsider cannot read", func(t *testing.T) {
		_, err := env.uc.Status(context.Background(), consent.StatusQuery{From: "alice", To: "bob", Caller: "carol", Token: env.token(t, "carol")})
		ae, ok := appErrors.As(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.CodePermissionDenied, ae.Code)
	})
}

func TestConsentUsecase_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockRepository(ctrl)
	env := newTestEnv(t, mockRepo, relaxedPolicies())

	g := mockRepo.EXPECT()
	g.Get(gomock.Any(), "alice", "bob").Return(&models.Relationship{From: "alice", To: "bob", Status: models.StatusPending}, nil)
	g.Get(gomock.Any(), "bob", "alice").Return(&models.Relationship{From: "bob", To: "alice", Status: models.StatusNone}, nil)
	g.Save(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, changes ...consent.Change) error {
		require.Len(t, changes, 2)
		assert.Equal(t, models.StatusAccepted, changes[0].Relationship.Status)
		assert.Equal(t, models.StatusPending, changes[0].Transition.FromStatus)
		assert.Equal(t, "bob", changes[1].Relationship.From)
		assert.Equal(t, models.StatusAccepted, changes[1].Relationship.Status)
		return stderrors.New("connection reset")
	})

	_, err := env.apply(consent.ActionAccept, "alice", "bob", env.token(t, "bob"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonStoreUnavailable, appErrors.ReasonOf(err))
}

func TestConsentUsecase_UnknownStoredStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockRepository(ctrl)
	env := newTestEnv(t, mockRepo, relaxedPolicies())

	mockRepo.EXPECT().Get(gomock.Any(), "alice", "bob").Return(&models.Relationship{From: "alice", To: "bob", Status: "archived"}, nil)

	_, err := env.apply(consent.ActionAccept, "alice", "bob", env.token(t, "bob"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)
}
