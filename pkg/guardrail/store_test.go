package guardrail

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func openTestRuleStore(t *testing.T) *SQLRuleStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLRuleStore(db, SQLite)
	require.NoError(t, err)
	return store
}

func TestSQLRuleStore_CreateGetListUpdateDelete(t *testing.T) {
	store := openTestRuleStore(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	r := Rule{
		Name:            "high error rate",
		Enabled:         true,
		ConditionType:   ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 50.0},
		ActionType:      ActionPauseAgent,
		ActionConfig:    map[string]any{"message": "paused"},
		CooldownMinutes: 15,
	}
	created, err := store.CreateRule(ctx, r)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "high error rate", got.Name)
	assert.Equal(t, ConditionErrorRateThreshold, got.ConditionType)
	assert.Equal(t, 50.0, got.ConditionConfig["threshold"])

	list, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got.Enabled = false
	got.Name = "renamed"
	require.NoError(t, store.UpdateRule(ctx, got))
	reread, err := store.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, reread.Enabled)
	assert.Equal(t, "renamed", reread.Name)

	require.NoError(t, store.DeleteRule(ctx, created.ID))
	_, err = store.GetRule(ctx, created.ID)
	assert.Error(t, err)
}

func TestSQLRuleStore_ListEnabledRulesAllTenants(t *testing.T) {
	store := openTestRuleStore(t)
	acme := tenant.WithTenant(context.Background(), "acme")
	globex := tenant.WithTenant(context.Background(), "globex")

	_, err := store.CreateRule(acme, Rule{Name: "acme-enabled", Enabled: true, ConditionType: ConditionCostLimit, ActionType: ActionNotifyWebhook})
	require.NoError(t, err)
	_, err = store.CreateRule(acme, Rule{Name: "acme-disabled", Enabled: false, ConditionType: ConditionCostLimit, ActionType: ActionNotifyWebhook})
	require.NoError(t, err)
	_, err = store.CreateRule(globex, Rule{Name: "globex-enabled", Enabled: true, ConditionType: ConditionCostLimit, ActionType: ActionNotifyWebhook})
	require.NoError(t, err)

	all, err := store.ListEnabledRulesAllTenants(tenant.AsAdmin(context.Background()))
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSQLRuleStore_StateAndTriggerHistory(t *testing.T) {
	store := openTestRuleStore(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	_, ok, err := store.GetState(ctx, "rule-1", "agent-1")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC().Truncate(time.Second)
	val := 87.5
	require.NoError(t, store.PutState(ctx, State{RuleID: "rule-1", AgentID: "agent-1", TriggerCount: 1, LastTriggeredAt: &now, CurrentValue: &val}))

	state, ok, err := store.GetState(ctx, "rule-1", "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, state.TriggerCount)
	require.NotNil(t, state.LastTriggeredAt)
	assert.WithinDuration(t, now, *state.LastTriggeredAt, time.Second)
	require.NotNil(t, state.CurrentValue)
	assert.Equal(t, 87.5, *state.CurrentValue)

	state.TriggerCount = 2
	require.NoError(t, store.PutState(ctx, state))
	reread, ok, err := store.GetState(ctx, "rule-1", "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, reread.TriggerCount)

	require.NoError(t, store.AppendTriggerHistory(ctx, TriggerRecord{
		RuleID: "rule-1", AgentID: "agent-1", TriggeredAt: now, ObservedValue: 87.5, Threshold: 50,
		ActionExecuted: true, ActionResult: "paused", Metadata: map[string]any{"k": "v"},
	}))

	history, err := store.ListTriggerHistory(ctx, "rule-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "paused", history[0].ActionResult)
	assert.Equal(t, "v", history[0].Metadata["k"])
}
