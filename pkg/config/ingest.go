package config

import (
	"fmt"
	"strconv"
	"time"
)

// IngestConfig controls the HTTP gateway's batch limits, streaming
// heartbeat cadence, and per-tenant ingress rate limit.
type IngestConfig struct {
	MaxBatchSize     int
	StreamHeartbeat  time.Duration
	StreamBufferSize int

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// LoadIngestConfigFromEnv reads the gateway's batch size cap, SSE
// heartbeat interval, and per-tenant rate limit.
func LoadIngestConfigFromEnv() (IngestConfig, error) {
	maxBatch, err := strconv.Atoi(getEnvOrDefault("INGEST_MAX_BATCH_SIZE", "500"))
	if err != nil {
		return IngestConfig{}, NewLoadError("INGEST_MAX_BATCH_SIZE", err)
	}
	heartbeat, err := time.ParseDuration(getEnvOrDefault("INGEST_STREAM_HEARTBEAT", "30s"))
	if err != nil {
		return IngestConfig{}, NewLoadError("INGEST_STREAM_HEARTBEAT", err)
	}
	bufSize, err := strconv.Atoi(getEnvOrDefault("INGEST_STREAM_BUFFER_SIZE", "256"))
	if err != nil {
		return IngestConfig{}, NewLoadError("INGEST_STREAM_BUFFER_SIZE", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnvOrDefault("INGEST_RATE_LIMIT_PER_SECOND", "200"), 64)
	if err != nil {
		return IngestConfig{}, NewLoadError("INGEST_RATE_LIMIT_PER_SECOND", err)
	}
	rateBurst, err := strconv.Atoi(getEnvOrDefault("INGEST_RATE_LIMIT_BURST", "400"))
	if err != nil {
		return IngestConfig{}, NewLoadError("INGEST_RATE_LIMIT_BURST", err)
	}

	cfg := IngestConfig{
		MaxBatchSize:       maxBatch,
		StreamHeartbeat:    heartbeat,
		StreamBufferSize:   bufSize,
		RateLimitPerSecond: rateLimit,
		RateLimitBurst:     rateBurst,
	}
	if err := cfg.Validate(); err != nil {
		return IngestConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c IngestConfig) Validate() error {
	if c.MaxBatchSize < 1 {
		return NewValidationError("ingest", "INGEST_MAX_BATCH_SIZE", fmt.Errorf("must be at least 1"))
	}
	if c.StreamHeartbeat <= 0 {
		return NewValidationError("ingest", "INGEST_STREAM_HEARTBEAT", fmt.Errorf("must be positive"))
	}
	if c.StreamBufferSize < 1 {
		return NewValidationError("ingest", "INGEST_STREAM_BUFFER_SIZE", fmt.Errorf("must be at least 1"))
	}
	if c.RateLimitPerSecond <= 0 {
		return NewValidationError("ingest", "INGEST_RATE_LIMIT_PER_SECOND", fmt.Errorf("must be positive"))
	}
	if c.RateLimitBurst < 1 {
		return NewValidationError("ingest", "INGEST_RATE_LIMIT_BURST", fmt.Errorf("must be at least 1"))
	}
	return nil
}
