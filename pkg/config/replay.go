package config

import (
	"fmt"
	"strconv"
	"time"
)

// ReplayConfig sizes the replay projector's per-(tenant, session) cache
// and bounds how many steps a single replay request can request at once
// (spec §4.7).
type ReplayConfig struct {
	CacheTTL         time.Duration
	CacheSize        int
	MaxPageSize      int
	RollingLLMWindow int // number of prior LLM exchanges folded into step context
}

// LoadReplayConfigFromEnv reads the replay cache and pagination settings.
func LoadReplayConfigFromEnv() (ReplayConfig, error) {
	ttl, err := time.ParseDuration(getEnvOrDefault("REPLAY_CACHE_TTL", "10m"))
	if err != nil {
		return ReplayConfig{}, NewLoadError("REPLAY_CACHE_TTL", err)
	}
	size, err := strconv.Atoi(getEnvOrDefault("REPLAY_CACHE_SIZE", "100"))
	if err != nil {
		return ReplayConfig{}, NewLoadError("REPLAY_CACHE_SIZE", err)
	}
	maxPage, err := strconv.Atoi(getEnvOrDefault("REPLAY_MAX_PAGE_SIZE", "5000"))
	if err != nil {
		return ReplayConfig{}, NewLoadError("REPLAY_MAX_PAGE_SIZE", err)
	}
	rollingWindow, err := strconv.Atoi(getEnvOrDefault("REPLAY_ROLLING_LLM_WINDOW", "50"))
	if err != nil {
		return ReplayConfig{}, NewLoadError("REPLAY_ROLLING_LLM_WINDOW", err)
	}

	cfg := ReplayConfig{CacheTTL: ttl, CacheSize: size, MaxPageSize: maxPage, RollingLLMWindow: rollingWindow}
	if err := cfg.Validate(); err != nil {
		return ReplayConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c ReplayConfig) Validate() error {
	if c.CacheTTL <= 0 {
		return NewValidationError("replay", "REPLAY_CACHE_TTL", fmt.Errorf("must be positive"))
	}
	if c.CacheSize < 1 {
		return NewValidationError("replay", "REPLAY_CACHE_SIZE", fmt.Errorf("must be at least 1"))
	}
	if c.MaxPageSize < 1 {
		return NewValidationError("replay", "REPLAY_MAX_PAGE_SIZE", fmt.Errorf("must be at least 1"))
	}
	if c.RollingLLMWindow < 1 {
		return NewValidationError("replay", "REPLAY_ROLLING_LLM_WINDOW", fmt.Errorf("must be at least 1"))
	}
	return nil
}
