package guardrail

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func TestLoadSeedRulesYAML(t *testing.T) {
	src := `
rules:
  - name: cost-per-session-ceiling
    conditionType: cost_threshold
    conditionConfig:
      maxUsd: 5.0
    actionType: notify_webhook
    actionConfig:
      url: https://example.com/hook
    cooldownMinutes: 30
`
	rules, err := LoadSeedRulesYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "cost-per-session-ceiling", rules[0].Name)
	assert.True(t, rules[0].Enabled)
	assert.Equal(t, ConditionType("cost_threshold"), rules[0].ConditionType)
	assert.Equal(t, 30, rules[0].CooldownMinutes)
}

func TestSeedRules_SkipsAlreadyExisting(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLRuleStore(db, SQLite)
	require.NoError(t, err)

	ctx := tenant.WithTenant(context.Background(), "acme")
	rules, err := LoadSeedRulesYAML(strings.NewReader(`
rules:
  - name: cost-per-session-ceiling
    conditionType: cost_threshold
    actionType: notify_webhook
`))
	require.NoError(t, err)

	require.NoError(t, SeedRules(ctx, store, rules))
	require.NoError(t, SeedRules(ctx, store, rules))

	listed, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
