// Package config assembles agentlens's runtime configuration from
// environment variables, following the same env-var-driven shape as
// pkg/database's LoadConfigFromEnv: each sub-config owns a
// LoadXFromEnv/Validate pair, and Load composes them into one Config.
package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

// Config is the fully assembled, validated runtime configuration for the
// agentlens daemon.
type Config struct {
	Database   DatabaseConfig
	Retention  RetentionConfig
	Guardrail  GuardrailConfig
	Redaction  RedactionConfig
	Auth       AuthConfig
	Replay     ReplayConfig
	Ingest     IngestConfig
	HTTPPort   string
	GinMode    string
}

// Load reads an optional .env file at envPath (missing file is a warning,
// not an error, matching the daemon's tolerance for environments where
// configuration arrives purely through the process environment) and
// assembles every sub-config.
func Load(envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
		} else {
			slog.Info("loaded environment file", "path", envPath)
		}
	}

	db, err := LoadDatabaseConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load database config: %w", err)
	}
	retention, err := LoadRetentionConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load retention config: %w", err)
	}
	guardrail, err := LoadGuardrailConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load guardrail config: %w", err)
	}
	redaction, err := LoadRedactionConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load redaction config: %w", err)
	}
	auth, err := LoadAuthConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load auth config: %w", err)
	}
	replay, err := LoadReplayConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load replay config: %w", err)
	}
	ingest, err := LoadIngestConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load ingest config: %w", err)
	}

	cfg := Config{
		Database:  db,
		Retention: retention,
		Guardrail: guardrail,
		Redaction: redaction,
		Auth:      auth,
		Replay:    replay,
		Ingest:    ingest,
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:   getEnvOrDefault("GIN_MODE", "release"),
	}
	return cfg, nil
}

// LoadFromEnv is Load with no .env file read, for environments (tests,
// containers with injected env) where one is never expected to exist.
func LoadFromEnv() (Config, error) {
	return Load("")
}
