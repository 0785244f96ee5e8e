package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
session:
  secret: s3cret
rotation:
  maxskew: 300s
  warnskew: 60s
ratelimits:
  key_rotation:
    window: 1h
    limit: 1
    failclosed: true
  revocation:
    window: 12h
    limit: 2
server:
  trustedproxies: [10.0.0.1, 10.0.0.2]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "test.yaml"), yaml, 0o644))
	testChdir(t, dir)
	t.Setenv("VIBETRUST_SERVER_PORT", "9999")

	v, err := LoadConfig("test")
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 300*time.Second, cfg.Rotation.MaxSkew)
	assert.Equal(t, time.Hour, cfg.Rotation.NonceTTL)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)

	rl, ok := cfg.RateLimits["key_rotation"]
	require.True(t, ok)
	assert.Equal(t, time.Hour, rl.Window)
	assert.EqualValues(t, 1, rl.Limit)
	require.NotNil(t, rl.FailClosed)
	assert.True(t, *rl.FailClosed)

	rl, ok = cfg.RateLimits["revocation"]
	require.True(t, ok)
	assert.Nil(t, rl.FailClosed, "omitted failclosed stays unset")

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Missing(t *testing.T) {
	testChdir(t, t.TempDir())
	_, err := LoadConfig("nope")
	assert.EqualError(t, err, "config file not found")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Session:  Session{Secret: "x"},
			Storage:  Storage{Backend: BackendMemory},
			Rotation: Rotation{MaxSkew: 300 * time.Second, WarnSkew: 60 * time.Second},
		}
	}

	t.Run("sad path - empty secret", func(t *testing.T) {
		c := base()
		c.Session.Secret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("sad path - unknown backend", func(t *testing.T) {
		c := base()
		c.Storage.Backend = "redis"
		assert.Error(t, c.Validate())
	})

	t.Run("sad path - postgres without dsn", func(t *testing.T) {
		c := base()
		c.Storage.Backend = BackendPostgres
		assert.Error(t, c.Validate())
	})

	t.Run("happy path - postgres falls back to bun dsn", func(t *testing.T) {
		c := base()
		c.Storage.Backend = BackendPostgres
		c.Bun.DSN = "postgres://localhost/db"
		assert.NoError(t, c.Validate())
		assert.Equal(t, "postgres://localhost/db", c.KVDSN())
	})

	t.Run("sad path - zero rate limit", func(t *testing.T) {
		c := base()
		c.RateLimits = map[string]RateLimit{"login": {Window: time.Minute}}
		assert.Error(t, c.Validate())
	})
}
