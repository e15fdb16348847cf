package guardrail

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// seedRuleFixture mirrors the YAML shape operators hand-maintain to
// bootstrap a tenant's default guardrail rules, e.g.:
//
//	rules:
//	  - name: cost-per-session-ceiling
//	    conditionType: cost_threshold
//	    conditionConfig: {maxUsd: 5.0}
//	    actionType: notify_webhook
//	    actionConfig: {url: https://example.com/hook}
//	    cooldownMinutes: 30
type seedRuleFixture struct {
	Rules []struct {
		Name            string         `yaml:"name"`
		Enabled         *bool          `yaml:"enabled"`
		DryRun          bool           `yaml:"dryRun"`
		AgentID         string         `yaml:"agentId"`
		ConditionType   string         `yaml:"conditionType"`
		ConditionConfig map[string]any `yaml:"conditionConfig"`
		ActionType      string         `yaml:"actionType"`
		ActionConfig    map[string]any `yaml:"actionConfig"`
		CooldownMinutes int            `yaml:"cooldownMinutes"`
	} `yaml:"rules"`
}

// LoadSeedRulesYAML parses an operator-maintained rule fixture into Rules
// ready to hand to SeedRules. TenantID is left blank; SeedRules stamps it.
func LoadSeedRulesYAML(r io.Reader) ([]Rule, error) {
	var fixture seedRuleFixture
	if err := yaml.NewDecoder(r).Decode(&fixture); err != nil {
		return nil, fmt.Errorf("parse guardrail seed rules yaml: %w", err)
	}

	now := time.Now().UTC()
	rules := make([]Rule, 0, len(fixture.Rules))
	for _, rr := range fixture.Rules {
		enabled := true
		if rr.Enabled != nil {
			enabled = *rr.Enabled
		}
		var agentID *string
		if rr.AgentID != "" {
			agentID = &rr.AgentID
		}
		rules = append(rules, Rule{
			Name:            rr.Name,
			Enabled:         enabled,
			DryRun:          rr.DryRun,
			AgentID:         agentID,
			ConditionType:   ConditionType(rr.ConditionType),
			ConditionConfig: rr.ConditionConfig,
			ActionType:      ActionType(rr.ActionType),
			ActionConfig:    rr.ActionConfig,
			CooldownMinutes: rr.CooldownMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return rules, nil
}

// SeedRules creates each rule for the tenant bound in ctx, skipping ones
// that already exist by name so a restart doesn't duplicate them.
func SeedRules(ctx tenant.Context, store RuleStore, rules []Rule) error {
	existing, err := store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list existing rules: %w", err)
	}
	byName := make(map[string]bool, len(existing))
	for _, r := range existing {
		byName[r.Name] = true
	}

	for _, r := range rules {
		if byName[r.Name] {
			continue
		}
		r.TenantID = ctx.ID()
		if _, err := store.CreateRule(ctx, r); err != nil {
			return fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
	}
	return nil
}
