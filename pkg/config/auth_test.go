package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAuthConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadAuthConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.APIKeyCacheSize)
}

func TestAuthConfig_Validate_RejectsZeroCacheSize(t *testing.T) {
	cfg := AuthConfig{APIKeyCacheTTL: 1, APIKeyCacheSize: 0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_SIZE")
}
