package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Gateway captures the admission-control policy knobs plus process wiring.
// All values come from the environment so main stays lean.
type Gateway struct {
	Addr       string
	AdminToken string

	// LocalDomain is the identity of this ledger when publishing to remotes.
	LocalDomain string

	// Admission policy.
	BasePrice            float64
	MinStake             float64
	MinReputation        int
	PowDifficulty        int
	RequireRegistration  bool
	StakeDiscountCeiling float64
	MaxPayloadBytes      int64

	// Session credential issuance.
	SessionSigningKey  string
	SessionTTL         time.Duration
	SessionMaxRequests int
	SessionMaxCost     float64

	// Optional backends; memory implementations are used when unset.
	RedisURL     string
	PostgresDSN  string
	KafkaBrokers []string
}

// RedisConfig holds tuning for the shared redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Gateway config from environment variables.
func FromEnv() Gateway {
	cfg := Gateway{
		Addr:                 envOr("TRUSTGATE_ADDR", ":8080"),
		AdminToken:           os.Getenv("TRUSTGATE_ADMIN_TOKEN"),
		LocalDomain:          envOr("TRUSTGATE_LOCAL_DOMAIN", "local"),
		BasePrice:            envFloat("TRUSTGATE_BASE_PRICE", 0.05),
		MinStake:             envFloat("TRUSTGATE_MIN_STAKE", 0),
		MinReputation:        envInt("TRUSTGATE_MIN_REPUTATION", 0),
		PowDifficulty:        envInt("TRUSTGATE_POW_DIFFICULTY", 0),
		RequireRegistration:  os.Getenv("TRUSTGATE_REQUIRE_REGISTRATION") == "true",
		StakeDiscountCeiling: envFloat("TRUSTGATE_STAKE_DISCOUNT_CEILING", 1000),
		MaxPayloadBytes:      int64(envInt("TRUSTGATE_MAX_PAYLOAD_BYTES", 1<<20)),
		SessionSigningKey:    envOr("TRUSTGATE_SESSION_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:           envDuration("TRUSTGATE_SESSION_TTL", time.Hour),
		SessionMaxRequests:   envInt("TRUSTGATE_SESSION_MAX_REQUESTS", 100),
		SessionMaxCost:       envFloat("TRUSTGATE_SESSION_MAX_COST", 10),
		RedisURL:             os.Getenv("TRUSTGATE_REDIS_URL"),
		PostgresDSN:          os.Getenv("TRUSTGATE_POSTGRES_DSN"),
	}
	if brokers := os.Getenv("TRUSTGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

// Redis builds the redis client config from the gateway config.
func (g Gateway) Redis() RedisConfig {
	return RedisConfig{
		URL:          g.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
