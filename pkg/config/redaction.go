package config

import (
	"os"
	"strconv"
	"strings"
)

// RedactionConfig toggles individual pipeline layers and supplies the
// per-tenant data the tenant de-identification and URL scrubbing layers
// need (spec §4.5). Layers are enabled by default; each can be disabled
// independently for environments (e.g. local dev) where the extra
// latency or false-positive rate isn't wanted.
type RedactionConfig struct {
	SecretDetectionEnabled  bool
	PIIDetectionEnabled     bool
	URLScrubbingEnabled     bool
	DeidentificationEnabled bool
	DenyListEnabled         bool
	HumanReviewEnabled      bool

	// URLAllowlistHosts are hosts whose path/query survive layer 300
	// untouched.
	URLAllowlistHosts []string

	// NERProviderURL, if set, is called by the PII detection layer to
	// supplement the regex-based span detector with model-based spans.
	// Empty disables the optional NER call.
	NERProviderURL string

	// DenyListFile, if set, points at a YAML fixture of deny-list rules
	// applied process-wide in addition to any per-request rules
	// (pkg/redaction.LoadDenyListYAML).
	DenyListFile string
}

// LoadRedactionConfigFromEnv reads layer toggles and the NER provider
// endpoint.
func LoadRedactionConfigFromEnv() (RedactionConfig, error) {
	cfg := RedactionConfig{
		SecretDetectionEnabled:  getEnvBool("REDACTION_SECRET_DETECTION_ENABLED", true),
		PIIDetectionEnabled:     getEnvBool("REDACTION_PII_DETECTION_ENABLED", true),
		URLScrubbingEnabled:     getEnvBool("REDACTION_URL_SCRUBBING_ENABLED", true),
		DeidentificationEnabled: getEnvBool("REDACTION_DEIDENTIFICATION_ENABLED", true),
		DenyListEnabled:         getEnvBool("REDACTION_DENY_LIST_ENABLED", true),
		HumanReviewEnabled:      getEnvBool("REDACTION_HUMAN_REVIEW_ENABLED", true),
		URLAllowlistHosts:       splitNonEmpty(os.Getenv("REDACTION_URL_ALLOWLIST_HOSTS"), ","),
		NERProviderURL:          os.Getenv("REDACTION_NER_PROVIDER_URL"),
		DenyListFile:            os.Getenv("REDACTION_DENY_LIST_FILE"),
	}
	if err := cfg.Validate(); err != nil {
		return RedactionConfig{}, err
	}
	return cfg, nil
}

// Validate is a no-op today; every field is optional or a boolean. It
// exists so RedactionConfig follows the same Load/Validate shape as
// every other sub-config.
func (c RedactionConfig) Validate() error {
	return nil
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func splitNonEmpty(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
