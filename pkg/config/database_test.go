package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDatabaseConfigFromEnv_EmbeddedDefault(t *testing.T) {
	cfg, err := LoadDatabaseConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendEmbedded, cfg.Backend)
	assert.Equal(t, "./agentlens.db", cfg.EmbeddedPath)
}

func TestLoadDatabaseConfigFromEnv_PartitionedRequiresPassword(t *testing.T) {
	t.Setenv("DATABASE_BACKEND", BackendPartitioned)
	_, err := LoadDatabaseConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_PG_PASSWORD")
}

func TestLoadDatabaseConfigFromEnv_PartitionedWithPassword(t *testing.T) {
	t.Setenv("DATABASE_BACKEND", BackendPartitioned)
	t.Setenv("DATABASE_PG_PASSWORD", "secret")
	t.Setenv("DATABASE_PG_HOST", "db.internal")

	cfg, err := LoadDatabaseConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "secret", cfg.Postgres.Password)
}

func TestDatabaseConfig_Validate_RejectsUnknownBackend(t *testing.T) {
	cfg := DatabaseConfig{Backend: "nonsense"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestDatabaseConfig_Validate_RejectsIdleExceedingOpen(t *testing.T) {
	cfg := DatabaseConfig{
		Backend: BackendPartitioned,
	}
	cfg.Postgres.Password = "secret"
	cfg.Postgres.MaxOpenConns = 5
	cfg.Postgres.MaxIdleConns = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_IDLE_CONNS")
}
