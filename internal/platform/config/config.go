package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service. Values come from
// the environment with development defaults so a bare `go run` works against
// in-memory stores.
type Config struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// PostgresURL selects the Postgres stores when set; empty means in-memory.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// CASRetries bounds how many times a lifecycle operation retries a
	// transient store fault before surfacing unavailable. Lost races are
	// surfaced immediately, never retried internally.
	CASRetries      int
	CASRetryBackoff time.Duration

	// DispatchRetryInterval paces the notification retry worker.
	DispatchRetryInterval time.Duration
	DispatchMaxAttempts   int
}

// RedisConfig configures the idempotency-mark client. Empty URL disables
// Redis; the dispatcher then relies on store uniqueness alone.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MarkTTL bounds how long dispatch idempotency marks live. Must exceed the
	// longest plausible retry horizon.
	MarkTTL time.Duration
}

// KafkaConfig configures the audit outbox relay. Empty brokers disables the
// relay; audit events then stay in the outbox table.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          envOr("MEDVAULT_ADDR", ":8080"),
		JWTSigningKey: envOr("MEDVAULT_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("MEDVAULT_JWT_ISSUER", "medvault-identity"),
		JWTAudience:   envOr("MEDVAULT_JWT_AUDIENCE", "medvault"),
		PostgresURL:   os.Getenv("MEDVAULT_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("MEDVAULT_REDIS_URL"),
			PoolSize:     envIntOr("MEDVAULT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("MEDVAULT_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("MEDVAULT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("MEDVAULT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("MEDVAULT_REDIS_WRITE_TIMEOUT", 3*time.Second),
			MarkTTL:      envDurationOr("MEDVAULT_DISPATCH_MARK_TTL", 7*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("MEDVAULT_KAFKA_BROKERS")),
			Topic:   envOr("MEDVAULT_KAFKA_AUDIT_TOPIC", "medvault.audit"),
		},
		CASRetries:            envIntOr("MEDVAULT_CAS_RETRIES", 3),
		CASRetryBackoff:       envDurationOr("MEDVAULT_CAS_RETRY_BACKOFF", 50*time.Millisecond),
		DispatchRetryInterval: envDurationOr("MEDVAULT_DISPATCH_RETRY_INTERVAL", 30*time.Second),
		DispatchMaxAttempts:   envIntOr("MEDVAULT_DISPATCH_MAX_ATTEMPTS", 10),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
