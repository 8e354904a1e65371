// Package config builds runtime configuration from environment variables so
// main stays lean. Every field has a development default; production
// deployments override through the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "spout/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Redis captures connection settings for the shared price cache. An empty
// URL means Redis is not configured and the in-memory cache is used.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres captures the identity and registry store connection. An empty DSN
// selects the in-memory stores.
type Postgres struct {
	DSN string
}

// Kafka captures the event pipeline settings. Empty brokers disable
// publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Orders captures order-engine settings.
type Orders struct {
	DefaultTokenDecimals  uint8
	OracleSubscriptionRef uint64
}

// Registry captures compliance registry administration settings. Owners are
// hex wallet addresses allowed to mutate registry state.
type Registry struct {
	Owners []string
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
	Orders   Orders
	Registry Registry
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("SPOUT_ADDR", ":8080"),
			JWTSigningKey: envOr("SPOUT_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Redis: Redis{
			URL:          os.Getenv("SPOUT_REDIS_URL"),
			PoolSize:     envInt("SPOUT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SPOUT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("SPOUT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SPOUT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SPOUT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("SPOUT_POSTGRES_DSN"),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("SPOUT_KAFKA_BROKERS")),
			Topic:   envOr("SPOUT_KAFKA_TOPIC", "spout.events"),
		},
		Orders: Orders{
			DefaultTokenDecimals:  uint8(envInt("SPOUT_TOKEN_DECIMALS", 18)),
			OracleSubscriptionRef: uint64(envInt("SPOUT_ORACLE_SUBSCRIPTION_REF", 1)),
		},
		Registry: Registry{
			Owners: splitList(os.Getenv("SPOUT_REGISTRY_OWNERS")),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(v, ","))
}
