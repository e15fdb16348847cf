package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RetentionConfig resolves how many days of event history a tenant keeps.
// Effective retention is (in priority order): a per-tenant override, then
// the tenant's plan-tier default, then DefaultRetentionDays. A resolved
// value of zero or less means "purge everything on every run" is wrong —
// it means retention is disabled for that tenant and the purger must skip
// it silently (spec: "retentionDays <= 0" skip).
type RetentionConfig struct {
	// TierDefaults maps a plan tier name (e.g. "free", "pro", "enterprise")
	// to its default retention in days.
	TierDefaults map[string]int

	// DefaultRetentionDays applies when a tenant's tier is unknown or unset.
	DefaultRetentionDays int

	// TenantOverrides maps a tenant id directly to a retention day count,
	// taking priority over tier defaults.
	TenantOverrides map[string]int

	// WarningLeadDays is how far ahead of actual deletion the purger
	// should look when generating an approaching-expiry warning.
	WarningLeadDays int
}

// Resolve returns the effective retention in days for a tenant on the
// given plan tier.
func (c RetentionConfig) Resolve(tenantID, tier string) int {
	if days, ok := c.TenantOverrides[tenantID]; ok {
		return days
	}
	if days, ok := c.TierDefaults[tier]; ok {
		return days
	}
	return c.DefaultRetentionDays
}

// LoadRetentionConfigFromEnv reads tier defaults from RETENTION_TIER_<NAME>,
// per-tenant overrides from the RETENTION_OVERRIDES list (comma-separated
// tenant=days pairs), and the remaining scalar settings.
func LoadRetentionConfigFromEnv() (RetentionConfig, error) {
	defaultDays, err := strconv.Atoi(getEnvOrDefault("RETENTION_DEFAULT_DAYS", "30"))
	if err != nil {
		return RetentionConfig{}, NewLoadError("RETENTION_DEFAULT_DAYS", err)
	}
	leadDays, err := strconv.Atoi(getEnvOrDefault("RETENTION_WARNING_LEAD_DAYS", "7"))
	if err != nil {
		return RetentionConfig{}, NewLoadError("RETENTION_WARNING_LEAD_DAYS", err)
	}

	tiers := map[string]int{
		"free":       mustAtoiDefault(getEnvOrDefault("RETENTION_TIER_FREE_DAYS", "7")),
		"pro":        mustAtoiDefault(getEnvOrDefault("RETENTION_TIER_PRO_DAYS", "30")),
		"enterprise": mustAtoiDefault(getEnvOrDefault("RETENTION_TIER_ENTERPRISE_DAYS", "365")),
	}

	overrides, err := parseTenantOverrides(os.Getenv("RETENTION_OVERRIDES"))
	if err != nil {
		return RetentionConfig{}, NewLoadError("RETENTION_OVERRIDES", err)
	}

	cfg := RetentionConfig{
		TierDefaults:         tiers,
		DefaultRetentionDays: defaultDays,
		TenantOverrides:      overrides,
		WarningLeadDays:      leadDays,
	}
	if err := cfg.Validate(); err != nil {
		return RetentionConfig{}, err
	}
	return cfg, nil
}

func mustAtoiDefault(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseTenantOverrides parses "tenant1=14,tenant2=0" into a map. An empty
// string yields an empty, non-nil map.
func parseTenantOverrides(raw string) (map[string]int, error) {
	overrides := map[string]int{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return overrides, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed override %q, expected tenant=days", pair)
		}
		tenantID := strings.TrimSpace(parts[0])
		days, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", pair, err)
		}
		overrides[tenantID] = days
	}
	return overrides, nil
}

// Validate checks the configuration is internally consistent.
func (c RetentionConfig) Validate() error {
	if c.WarningLeadDays < 0 {
		return NewValidationError("retention", "RETENTION_WARNING_LEAD_DAYS", fmt.Errorf("cannot be negative"))
	}
	return nil
}
