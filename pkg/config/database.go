package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/storage/partitioned"
)

// BackendEmbedded selects the single-process SQLite store (pkg/storage/embedded).
const BackendEmbedded = "embedded"

// BackendPartitioned selects the multi-tenant PostgreSQL store (pkg/storage/partitioned).
const BackendPartitioned = "partitioned"

// DatabaseConfig selects and configures the storage backend. Exactly one
// of EmbeddedPath or the Postgres fields is meaningful, depending on
// Backend.
type DatabaseConfig struct {
	Backend string // "embedded" or "partitioned"

	// embedded backend
	EmbeddedPath string

	// partitioned backend
	Postgres partitioned.Config
}

// LoadDatabaseConfigFromEnv reads DATABASE_BACKEND plus the settings for
// whichever backend it selects.
func LoadDatabaseConfigFromEnv() (DatabaseConfig, error) {
	backend := getEnvOrDefault("DATABASE_BACKEND", BackendEmbedded)

	cfg := DatabaseConfig{
		Backend:      backend,
		EmbeddedPath: getEnvOrDefault("DATABASE_EMBEDDED_PATH", "./agentlens.db"),
	}

	port, err := strconv.Atoi(getEnvOrDefault("DATABASE_PG_PORT", "5432"))
	if err != nil {
		return DatabaseConfig{}, NewLoadError("DATABASE_PG_PORT", err)
	}
	maxOpen, err := strconv.Atoi(getEnvOrDefault("DATABASE_PG_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return DatabaseConfig{}, NewLoadError("DATABASE_PG_MAX_OPEN_CONNS", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("DATABASE_PG_MAX_IDLE_CONNS", "10"))
	if err != nil {
		return DatabaseConfig{}, NewLoadError("DATABASE_PG_MAX_IDLE_CONNS", err)
	}
	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DATABASE_PG_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return DatabaseConfig{}, NewLoadError("DATABASE_PG_CONN_MAX_LIFETIME", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("DATABASE_PG_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return DatabaseConfig{}, NewLoadError("DATABASE_PG_CONN_MAX_IDLE_TIME", err)
	}

	cfg.Postgres = partitioned.Config{
		Host:            getEnvOrDefault("DATABASE_PG_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DATABASE_PG_USER", "agentlens"),
		Password:        os.Getenv("DATABASE_PG_PASSWORD"),
		Database:        getEnvOrDefault("DATABASE_PG_NAME", "agentlens"),
		SSLMode:         getEnvOrDefault("DATABASE_PG_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}

	if err := cfg.Validate(); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for the backend it selects.
func (c DatabaseConfig) Validate() error {
	switch c.Backend {
	case BackendEmbedded:
		if c.EmbeddedPath == "" {
			return NewValidationError("database", "DATABASE_EMBEDDED_PATH", ErrMissingRequiredField)
		}
	case BackendPartitioned:
		if c.Postgres.Password == "" {
			return NewValidationError("database", "DATABASE_PG_PASSWORD", ErrMissingRequiredField)
		}
		if c.Postgres.MaxOpenConns < 1 {
			return NewValidationError("database", "DATABASE_PG_MAX_OPEN_CONNS", fmt.Errorf("must be at least 1"))
		}
		if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
			return NewValidationError("database", "DATABASE_PG_MAX_IDLE_CONNS",
				fmt.Errorf("(%d) cannot exceed DATABASE_PG_MAX_OPEN_CONNS (%d)", c.Postgres.MaxIdleConns, c.Postgres.MaxOpenConns))
		}
		if c.Postgres.MaxIdleConns < 0 {
			return NewValidationError("database", "DATABASE_PG_MAX_IDLE_CONNS", fmt.Errorf("cannot be negative"))
		}
	default:
		return NewValidationError("database", "DATABASE_BACKEND", fmt.Errorf("unknown backend %q", c.Backend))
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
