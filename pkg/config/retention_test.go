package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionConfig_Resolve_PrefersOverrideOverTier(t *testing.T) {
	cfg := RetentionConfig{
		TierDefaults:         map[string]int{"pro": 30},
		DefaultRetentionDays: 14,
		TenantOverrides:      map[string]int{"acme": 0},
	}
	assert.Equal(t, 0, cfg.Resolve("acme", "pro"))
}

func TestRetentionConfig_Resolve_FallsBackToTierThenDefault(t *testing.T) {
	cfg := RetentionConfig{
		TierDefaults:         map[string]int{"pro": 30},
		DefaultRetentionDays: 14,
	}
	assert.Equal(t, 30, cfg.Resolve("acme", "pro"))
	assert.Equal(t, 14, cfg.Resolve("acme", "unknown-tier"))
}

func TestLoadRetentionConfigFromEnv_ParsesOverrides(t *testing.T) {
	t.Setenv("RETENTION_OVERRIDES", "acme=0, globex = 90")
	cfg, err := LoadRetentionConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.TenantOverrides["acme"])
	assert.Equal(t, 90, cfg.TenantOverrides["globex"])
}

func TestLoadRetentionConfigFromEnv_MalformedOverrideFails(t *testing.T) {
	t.Setenv("RETENTION_OVERRIDES", "acme")
	_, err := LoadRetentionConfigFromEnv()
	require.Error(t, err)
}

func TestRetentionConfig_Validate_RejectsNegativeLeadDays(t *testing.T) {
	cfg := RetentionConfig{WarningLeadDays: -1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WARNING_LEAD_DAYS")
}
