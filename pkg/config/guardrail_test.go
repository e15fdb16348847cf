package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGuardrailConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadGuardrailConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 15, cfg.DefaultCooldownMinutes)
}

func TestLoadGuardrailConfigFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("GUARDRAIL_TICK_INTERVAL", "not-a-duration")
	_, err := LoadGuardrailConfigFromEnv()
	require.Error(t, err)
}

func TestGuardrailConfig_Validate_RejectsNonPositiveTick(t *testing.T) {
	cfg := GuardrailConfig{TickInterval: 0}
	err := cfg.Validate()
	require.Error(t, err)
}
