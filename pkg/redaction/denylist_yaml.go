package redaction

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// denyListFixture mirrors the YAML shape operators hand-maintain for the
// semantic deny-list layer, e.g.:
//
//	rules:
//	  - substring: classified-project-falcon
//	  - pattern: 'acct-\d{6}'
type denyListFixture struct {
	Rules []struct {
		Substring string `yaml:"substring"`
		Pattern   string `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadDenyListYAML parses an operator-maintained deny-list fixture into
// DenyRules for LayerToggles.DefaultDenyRules.
func LoadDenyListYAML(r io.Reader) ([]DenyRule, error) {
	var fixture denyListFixture
	if err := yaml.NewDecoder(r).Decode(&fixture); err != nil {
		return nil, fmt.Errorf("parse deny-list yaml: %w", err)
	}

	rules := make([]DenyRule, 0, len(fixture.Rules))
	for _, r := range fixture.Rules {
		rules = append(rules, DenyRule{Substring: r.Substring, Pattern: r.Pattern})
	}
	return rules, nil
}
