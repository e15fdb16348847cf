package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GuardrailConfig controls the reactive control plane's evaluation loop.
type GuardrailConfig struct {
	TickInterval           time.Duration
	DefaultCooldownMinutes int

	// SeedRulesFile, if set, points at a YAML fixture of default rules
	// applied to every tenant on daemon startup
	// (pkg/guardrail.LoadSeedRulesYAML).
	SeedRulesFile string
}

// LoadGuardrailConfigFromEnv reads the guardrail engine's tick cadence and
// default cooldown.
func LoadGuardrailConfigFromEnv() (GuardrailConfig, error) {
	tick, err := time.ParseDuration(getEnvOrDefault("GUARDRAIL_TICK_INTERVAL", "30s"))
	if err != nil {
		return GuardrailConfig{}, NewLoadError("GUARDRAIL_TICK_INTERVAL", err)
	}
	cooldown, err := strconv.Atoi(getEnvOrDefault("GUARDRAIL_DEFAULT_COOLDOWN_MINUTES", "15"))
	if err != nil {
		return GuardrailConfig{}, NewLoadError("GUARDRAIL_DEFAULT_COOLDOWN_MINUTES", err)
	}

	cfg := GuardrailConfig{
		TickInterval:           tick,
		DefaultCooldownMinutes: cooldown,
		SeedRulesFile:          os.Getenv("GUARDRAIL_SEED_RULES_FILE"),
	}
	if err := cfg.Validate(); err != nil {
		return GuardrailConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c GuardrailConfig) Validate() error {
	if c.TickInterval <= 0 {
		return NewValidationError("guardrail", "GUARDRAIL_TICK_INTERVAL", fmt.Errorf("must be positive"))
	}
	if c.DefaultCooldownMinutes < 0 {
		return NewValidationError("guardrail", "GUARDRAIL_DEFAULT_COOLDOWN_MINUTES", fmt.Errorf("cannot be negative"))
	}
	return nil
}
