package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReplayConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadReplayConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.CacheSize)
	assert.Equal(t, 5000, cfg.MaxPageSize)
	assert.Equal(t, 50, cfg.RollingLLMWindow)
}

func TestReplayConfig_Validate_RejectsZeroPageSize(t *testing.T) {
	cfg := ReplayConfig{CacheTTL: 1, CacheSize: 1, MaxPageSize: 0, RollingLLMWindow: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_PAGE_SIZE")
}
