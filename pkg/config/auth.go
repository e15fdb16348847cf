package config

import (
	"fmt"
	"strconv"
	"time"
)

// AuthConfig controls the in-memory API-key cache sitting in front of the
// hashed key lookup (spec §5: "evicts on TTL expiry and on explicit
// invalidation after revoke").
type AuthConfig struct {
	APIKeyCacheTTL  time.Duration
	APIKeyCacheSize int

	// RedisAddr, when non-empty, backs the API-key cache with Redis
	// instead of an in-process map, so multiple daemon replicas share
	// one cache and a revoke on one replica invalidates for all of
	// them. Empty means process-local only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadAuthConfigFromEnv reads the API-key cache's TTL, capacity, and
// optional Redis backing store.
func LoadAuthConfigFromEnv() (AuthConfig, error) {
	ttl, err := time.ParseDuration(getEnvOrDefault("AUTH_API_KEY_CACHE_TTL", "5m"))
	if err != nil {
		return AuthConfig{}, NewLoadError("AUTH_API_KEY_CACHE_TTL", err)
	}
	size, err := strconv.Atoi(getEnvOrDefault("AUTH_API_KEY_CACHE_SIZE", "1000"))
	if err != nil {
		return AuthConfig{}, NewLoadError("AUTH_API_KEY_CACHE_SIZE", err)
	}
	redisDB, err := strconv.Atoi(getEnvOrDefault("AUTH_REDIS_DB", "0"))
	if err != nil {
		return AuthConfig{}, NewLoadError("AUTH_REDIS_DB", err)
	}

	cfg := AuthConfig{
		APIKeyCacheTTL:  ttl,
		APIKeyCacheSize: size,
		RedisAddr:       getEnvOrDefault("AUTH_REDIS_ADDR", ""),
		RedisPassword:   getEnvOrDefault("AUTH_REDIS_PASSWORD", ""),
		RedisDB:         redisDB,
	}
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c AuthConfig) Validate() error {
	if c.APIKeyCacheTTL <= 0 {
		return NewValidationError("auth", "AUTH_API_KEY_CACHE_TTL", fmt.Errorf("must be positive"))
	}
	if c.APIKeyCacheSize < 1 {
		return NewValidationError("auth", "AUTH_API_KEY_CACHE_SIZE", fmt.Errorf("must be at least 1"))
	}
	return nil
}
