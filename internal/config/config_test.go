package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.MongoDatabase != "authgate" {
		t.Errorf("MongoDatabase = %q, want %q", cfg.MongoDatabase, "authgate")
	}
	if cfg.AuthEventTopic != "auth-events" {
		t.Errorf("AuthEventTopic = %q, want %q", cfg.AuthEventTopic, "auth-events")
	}
	if cfg.TokenTTL != "15m" {
		t.Errorf("TokenTTL = %q, want %q", cfg.TokenTTL, "15m")
	}
	if cfg.SessionTTL != "168h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "168h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if got := cfg.OutboxPollDuration(); got != 2*time.Second {
		t.Errorf("OutboxPollDuration = %v, want 2s", got)
	}
	if got := cfg.ReconcileDuration(); got != 30*time.Second {
		t.Errorf("ReconcileDuration = %v, want 30s", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATABASE_URL", "postgres://localhost/auth")
	os.Setenv("TOKEN_TTL", "5m")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/auth" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if got := cfg.TokenTTLDuration(); got != 5*time.Minute {
		t.Errorf("TokenTTLDuration = %v, want 5m", got)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "b1:9092" || brokers[1] != "b2:9092" {
		t.Errorf("KafkaBrokersList = %v, want [b1:9092 b2:9092]", brokers)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "50")
	if _, err := Load(); err == nil {
		t.Error("Load accepted out-of-range BCRYPT_COST")
	}

	os.Clearenv()
	os.Setenv("TOKEN_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Error("Load accepted a short TOKEN_SECRET")
	}
}

func TestDurationFallbacks(t *testing.T) {
	c := &Config{TokenTTL: "garbage", SessionTTL: "-1h"}
	if got := c.TokenTTLDuration(); got != 15*time.Minute {
		t.Errorf("TokenTTLDuration fallback = %v, want 15m", got)
	}
	if got := c.SessionTTLDuration(); got != 168*time.Hour {
		t.Errorf("SessionTTLDuration fallback = %v, want 168h", got)
	}
}
