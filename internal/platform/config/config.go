package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration for the certflow server.
type Config struct {
	Addr string

	// PostgresURL enables the PostgreSQL-backed stores. Empty keeps the
	// in-memory stores (development and tests).
	PostgresURL string

	// Redis enables distributed per-case locking across instances. Empty
	// keeps in-process locking.
	Redis RedisConfig

	// SupervisorCredentialHash is the bcrypt hash of the supervisor
	// credential required for stage rehabilitation. When empty,
	// SupervisorCredential is compared directly (development only).
	SupervisorCredentialHash string
	SupervisorCredential     string

	ShutdownTimeout time.Duration
}

// RedisConfig captures Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CERTFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	cred := os.Getenv("CERTFLOW_SUPERVISOR_CREDENTIAL")
	if cred == "" && os.Getenv("CERTFLOW_SUPERVISOR_CREDENTIAL_HASH") == "" {
		// Development default - must be overridden in production.
		cred = "dev-supervisor-credential"
	}

	return Config{
		Addr:                     addr,
		PostgresURL:              os.Getenv("CERTFLOW_POSTGRES_URL"),
		Redis:                    redisFromEnv(),
		SupervisorCredentialHash: os.Getenv("CERTFLOW_SUPERVISOR_CREDENTIAL_HASH"),
		SupervisorCredential:     cred,
		ShutdownTimeout:          10 * time.Second,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("CERTFLOW_REDIS_URL"),
		PoolSize:     envInt("CERTFLOW_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("CERTFLOW_REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
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
