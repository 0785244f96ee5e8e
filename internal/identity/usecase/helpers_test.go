package usecase

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"vibetrust/config"
	"vibetrust/internal/audit"
	"vibetrust/internal/identity"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/recovery"
	"vibetrust/internal/session"
	"vibetrust/internal/storage"
	"vibetrust/pkg/canonical"
	"vibetrust/pkg/logger"

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

var testConfig = config.Config{
	Session:  config.Session{Secret: "test-secret", TTL: time.Hour},
	Rotation: config.Rotation{MaxSkew: 300 * time.Second, WarnSkew: 60 * time.Second, NonceTTL: time.Hour, ChallengeTTL: 2 * time.Minute},
}

// relaxedPolicies lifts every limit so protocol tests observe protocol
// rejections rather than throttling.
func relaxedPolicies() map[ratelimit.Category]ratelimit.Policy {
	p := ratelimit.DefaultPolicies()
	for c, pol := range p {
		pol.Limit = 1000
		p[c] = pol
	}
	return p
}

type testEnv struct {
	uc    *IdentityUsecase
	kv    *storage.Memory
	guard *session.Guard
	clock *testClock
}

func newTestEnv(t *testing.T, repo identity.Repository, kv *storage.Memory, clock *testClock, policies map[ratelimit.Category]ratelimit.Policy) *testEnv {
	t.Helper()
	log := logger.Logger{}

	guard := session.NewGuard(
		session.NewAuthority(testConfig.Session.Secret),
		session.NewStore(kv, testConfig.Session.TTL, clock.Now),
		identity.NewPrincipalLookup(repo),
		log,
	)
	limiter := ratelimit.New(kv, policies, log, clock.Now)
	verifier := recovery.NewVerifier(kv, testConfig.Rotation, log, clock.Now)
	auditor, err := audit.NewRecorder(audit.NewRepository(nil, kv, log), 1, "salt", log, clock.Now)
	require.NoError(t, err)

	uc := NewIdentityUsecase(repo, guard, limiter, verifier, auditor, log, testConfig)
	uc.now = clock.Now
	return &testEnv{uc: uc, kv: kv, guard: guard, clock: clock}
}

type keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	wire string
}

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv, wire: canonical.FormatWirePublicKey(pub)}
}

func newClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}
