package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server     Server
	Bun        BunConfig
	Storage    Storage
	Session    Session
	Rotation   Rotation
	Audit      Audit
	RateLimits map[string]RateLimit
	LoggerMode LoggerMode
}

type Server struct {
	Port        string
	Environment string
	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies []string
}

type BunConfig struct {
	DSN string
}

// Storage selects the key-value backend used for nonces, counters and sessions.
type Storage struct {
	Backend string
	DSN     string
}

type Session struct {
	Secret string
	TTL    time.Duration
}

type Rotation struct {
	MaxSkew      time.Duration
	WarnSkew     time.Duration
	NonceTTL     time.Duration
	ChallengeTTL time.Duration
}

type Audit struct {
	IPSalt string
	Node   int64
}

// RateLimit overrides one category. A nil FailClosed keeps the category's
// default behaviour when the counter store is down.
type RateLimit struct {
	Window     time.Duration
	Limit      int64
	FailClosed *bool
}

type LoggerMode struct {
	Development bool
	Prod        bool
	Level       string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VIBETRUST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("rotation.maxskew", "300s")
	v.SetDefault("rotation.warnskew", "60s")
	v.SetDefault("rotation.noncettl", "1h")
	v.SetDefault("rotation.challengettl", "2m")
	v.SetDefault("audit.node", 1)
	v.SetDefault("loggermode.level", "info")
	// AutomaticEnv only sees keys viper already knows about.
	v.SetDefault("session.secret", "")
	v.SetDefault("bun.dsn", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("audit.ipsalt", "")
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	err := v.Unmarshal(&c, hook)
	if err != nil {
		logrus.WithError(err).Error("Unable to unmarshal config")
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("config: session.secret must be set")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DSN == "" && c.Bun.DSN == "" {
			return errors.New("config: storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Rotation.MaxSkew <= 0 {
		return errors.New("config: rotation.maxskew must be positive")
	}
	if c.Rotation.WarnSkew > c.Rotation.MaxSkew {
		return errors.New("config: rotation.warnskew must not exceed rotation.maxskew")
	}
	for name, rl := range c.RateLimits {
		if rl.Window <= 0 || rl.Limit <= 0 {
			return fmt.Errorf("config: rate limit %q needs a positive window and limit", name)
		}
	}
	return nil
}

// KVDSN is the DSN for the key-value backend, falling back to the bun DSN.
func (c *Config) KVDSN() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	return c.Bun.DSN
}
