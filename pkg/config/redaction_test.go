package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRedactionConfigFromEnv_DefaultsAllLayersEnabled(t *testing.T) {
	cfg, err := LoadRedactionConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.SecretDetectionEnabled)
	assert.True(t, cfg.PIIDetectionEnabled)
	assert.True(t, cfg.DenyListEnabled)
	assert.True(t, cfg.HumanReviewEnabled)
}

func TestLoadRedactionConfigFromEnv_DisableLayer(t *testing.T) {
	t.Setenv("REDACTION_HUMAN_REVIEW_ENABLED", "false")
	cfg, err := LoadRedactionConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HumanReviewEnabled)
}

func TestLoadRedactionConfigFromEnv_ParsesAllowlistHosts(t *testing.T) {
	t.Setenv("REDACTION_URL_ALLOWLIST_HOSTS", "docs.internal, api.internal")
	cfg, err := LoadRedactionConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs.internal", "api.internal"}, cfg.URLAllowlistHosts)
}
