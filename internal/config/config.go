// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment. The
// engine itself never reads config; main wires already-connected handles in.
type Config struct {
	// DatabaseURL is the Postgres DSN for the durable account store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MongoURL is the connection string for the session/profile store.
	MongoURL string `mapstructure:"MONGO_URL"`
	// MongoDatabase is the document database holding the sessions collection.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// KafkaBrokers is a comma-separated list of bus broker addresses.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventTopic is the bus topic auth events are published on.
	AuthEventTopic string `mapstructure:"AUTH_EVENT_TOPIC"`
	// TokenSecret is the HMAC key for token and event integrity tags; at
	// least 32 bytes.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// TokenTTL is the access token lifetime (e.g. "15m").
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// SessionTTL is the session lifetime (e.g. "168h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OutboxPollInterval is how often the drainer polls for staged events.
	OutboxPollInterval string `mapstructure:"OUTBOX_POLL_INTERVAL"`
	// ReconcileInterval is how often the reconciler scans for unfinished
	// lock cascades.
	ReconcileInterval string `mapstructure:"RECONCILE_INTERVAL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_URL", "")
	v.SetDefault("MONGO_DATABASE", "authgate")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENT_TOPIC", "auth-events")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_TTL", "15m")
	v.SetDefault("SESSION_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("RECONCILE_INTERVAL", "30s")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.TokenSecret != "" && len(cfg.TokenSecret) < 32 {
		return nil, errors.New("config: TOKEN_SECRET must be at least 32 bytes")
	}

	return &cfg, nil
}

// TokenTTLDuration parses TokenTTL. Returns 15m if unset or invalid.
func (c *Config) TokenTTLDuration() time.Duration {
	return parseDuration(c.TokenTTL, 15*time.Minute)
}

// SessionTTLDuration parses SessionTTL. Returns 168h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	return parseDuration(c.SessionTTL, 168*time.Hour)
}

// OutboxPollDuration parses OutboxPollInterval. Returns 2s if unset or invalid.
func (c *Config) OutboxPollDuration() time.Duration {
	return parseDuration(c.OutboxPollInterval, 2*time.Second)
}

// ReconcileDuration parses ReconcileInterval. Returns 30s if unset or invalid.
func (c *Config) ReconcileDuration() time.Duration {
	return parseDuration(c.ReconcileInterval, 30*time.Second)
}

// KafkaBrokersList returns broker addresses from the comma-separated
// config. An empty list disables publication (events stay in the outbox).
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
