package guardrail

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/eventbus"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func newEngineFixture(t *testing.T) (*Engine, *SQLRuleStore, *embedded.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rules, err := NewSQLRuleStore(db, SQLite)
	require.NoError(t, err)

	events, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	bus := eventbus.New(16)
	engine := NewEngine(rules, events, events, bus)
	return engine, rules, events
}

func TestEngine_Tick_FiresActionAndRecordsHistory(t *testing.T) {
	engine, rules, events := newEngineFixture(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	require.NoError(t, events.UpsertAgent(ctx, storage.Agent{ID: "agent-1", TenantID: "acme", Name: "agent-1", FirstSeen: now, LastSeen: now}))
	seedEvent(t, events, ctx, "s1", "agent-1", now.Add(-2*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)
	seedEvent(t, events, ctx, "s2", "agent-1", now.Add(-1*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	_, err := rules.CreateRule(ctx, Rule{
		Name: "too many errors", Enabled: true,
		ConditionType:   ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 50.0, "minEventCount": 1.0},
		ActionType:      ActionPauseAgent,
		ActionConfig:    map[string]any{"message": "too many errors"},
		CooldownMinutes: 15,
	})
	require.NoError(t, err)

	sub := engine.bus.Subscribe(eventbus.MatchAll)
	defer sub.Unsubscribe()

	engine.Tick(context.Background())

	agent, err := events.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, agent.PausedAt)

	history, err := rules.ListTriggerHistory(ctx, firstRuleID(t, rules, ctx), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].ActionExecuted)

	select {
	case e := <-sub.Events:
		assert.Equal(t, eventmodel.TypeAlertTriggered, e.EventType)
	case <-time.After(time.Second):
		t.Fatal("expected alert_triggered event on bus")
	}
}

func TestEngine_Tick_RespectsCooldown(t *testing.T) {
	engine, rules, events := newEngineFixture(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	require.NoError(t, events.UpsertAgent(ctx, storage.Agent{ID: "agent-1", TenantID: "acme", Name: "agent-1", FirstSeen: now, LastSeen: now}))
	seedEvent(t, events, ctx, "s1", "agent-1", now.Add(-2*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	rule, err := rules.CreateRule(ctx, Rule{
		Name: "errors", Enabled: true,
		ConditionType:   ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 10.0, "minEventCount": 1.0},
		ActionType:      ActionPauseAgent,
		ActionConfig:    map[string]any{},
		CooldownMinutes: 60,
	})
	require.NoError(t, err)

	recently := now.Add(-1 * time.Minute)
	require.NoError(t, rules.PutState(ctx, State{RuleID: rule.ID, AgentID: "agent-1", TriggerCount: 1, LastTriggeredAt: &recently}))

	engine.Tick(context.Background())

	history, err := rules.ListTriggerHistory(ctx, rule.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history, "cooldown should have suppressed a new trigger")
}

func TestEngine_Tick_DryRunDoesNotExecuteAction(t *testing.T) {
	engine, rules, events := newEngineFixture(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	require.NoError(t, events.UpsertAgent(ctx, storage.Agent{ID: "agent-1", TenantID: "acme", Name: "agent-1", FirstSeen: now, LastSeen: now}))
	seedEvent(t, events, ctx, "s1", "agent-1", now.Add(-2*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	_, err := rules.CreateRule(ctx, Rule{
		Name: "errors", Enabled: true, DryRun: true,
		ConditionType:   ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 10.0, "minEventCount": 1.0},
		ActionType:      ActionPauseAgent,
		ActionConfig:    map[string]any{},
		CooldownMinutes: 15,
	})
	require.NoError(t, err)

	engine.Tick(context.Background())

	agent, err := events.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Nil(t, agent.PausedAt, "dry run must not execute the action")

	history, err := rules.ListTriggerHistory(ctx, firstRuleID(t, rules, ctx), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].ActionExecuted)
}

func TestEngine_StartStop_RunsTicksUntilStopped(t *testing.T) {
	engine, rules, events := newEngineFixture(t)
	engine.tickInterval = 10 * time.Millisecond
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	require.NoError(t, events.UpsertAgent(ctx, storage.Agent{ID: "agent-1", TenantID: "acme", Name: "agent-1", FirstSeen: now, LastSeen: now}))
	_, err := rules.CreateRule(ctx, Rule{
		Name: "cost", Enabled: true,
		ConditionType:   ConditionCostLimit,
		ConditionConfig: map[string]any{"maxCostUsd": 1000000.0},
		ActionType:      ActionPauseAgent,
		CooldownMinutes: 15,
	})
	require.NoError(t, err)

	engine.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	engine.Stop()
}

func TestDispatchNotifyWebhook_ThroughEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	withSSRFGuardDisabled(t)

	engine, rules, events := newEngineFixture(t)
	engine.httpClient = srv.Client()
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	require.NoError(t, events.UpsertAgent(ctx, storage.Agent{ID: "agent-1", TenantID: "acme", Name: "agent-1", FirstSeen: now, LastSeen: now}))
	seedEvent(t, events, ctx, "s1", "agent-1", now.Add(-2*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	_, err := rules.CreateRule(ctx, Rule{
		Name: "errors", Enabled: true,
		ConditionType:   ConditionErrorRateThreshold,
		ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 10.0, "minEventCount": 1.0},
		ActionType:      ActionNotifyWebhook,
		ActionConfig:    map[string]any{"url": srv.URL},
		CooldownMinutes: 15,
	})
	require.NoError(t, err)

	engine.Tick(context.Background())

	history, err := rules.ListTriggerHistory(ctx, firstRuleID(t, rules, ctx), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].ActionExecuted)
}

func firstRuleID(t *testing.T, rules *SQLRuleStore, ctx tenant.Context) string {
	t.Helper()
	list, err := rules.ListRules(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	return list[0].ID
}
