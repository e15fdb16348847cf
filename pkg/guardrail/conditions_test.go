package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func seedEvent(t *testing.T, store *embedded.Store, ctx tenant.Context, sessionID, agentID string, ts time.Time, eventType eventmodel.Type, severity eventmodel.Severity, payload map[string]any, prevHash *string) string {
	t.Helper()
	e := eventmodel.Event{
		ID:        sessionID + "-" + ts.Format(time.RFC3339Nano),
		Timestamp: ts,
		TenantID:  ctx.ID(),
		SessionID: sessionID,
		AgentID:   agentID,
		EventType: eventType,
		Severity:  severity,
		Payload:   payload,
		PrevHash:  prevHash,
	}.WithDefaults()
	e.Hash = eventmodel.EventHash(e)
	_, err := store.InsertEvents(ctx, []eventmodel.Event{e})
	require.NoError(t, err)
	return e.Hash
}

type fakeScorer struct {
	score float64
	err   error
}

func (f fakeScorer) OverallScore(tenant.Context, string) (float64, error) {
	return f.score, f.err
}

func TestEvaluateErrorRateThreshold_TriggersAboveFraction(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	seedEvent(t, store, ctx, "s1", "agent-1", now.Add(-4*time.Minute), eventmodel.TypeToolCall, eventmodel.SeverityInfo, nil, nil)
	seedEvent(t, store, ctx, "s2", "agent-1", now.Add(-3*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	r := Rule{ConditionType: ConditionErrorRateThreshold, ConditionConfig: map[string]any{"windowMinutes": 5.0, "threshold": 40.0, "minEventCount": 2.0}}
	eval, err := evaluateCondition(store, nil, ctx, r, "agent-1", now)
	require.NoError(t, err)
	assert.True(t, eval.Triggered)
	assert.InDelta(t, 50.0, eval.ObservedValue, 0.001)
}

func TestEvaluateErrorRateThreshold_SkipsWhenBelowMinEventCount(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()
	seedEvent(t, store, ctx, "s1", "agent-1", now.Add(-1*time.Minute), eventmodel.TypeToolError, eventmodel.SeverityError, nil, nil)

	r := Rule{ConditionType: ConditionErrorRateThreshold, ConditionConfig: map[string]any{"threshold": 1.0, "minEventCount": 10.0}}
	eval, err := evaluateCondition(store, nil, ctx, r, "agent-1", now)
	require.NoError(t, err)
	assert.False(t, eval.Triggered)
}

func TestEvaluateCostLimit_SumsCostTrackedEvents(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()
	seedEvent(t, store, ctx, "s1", "agent-1", now.Add(-1*time.Hour), eventmodel.TypeCostTracked, eventmodel.SeverityInfo, map[string]any{"costUsd": 6.5}, nil)
	seedEvent(t, store, ctx, "s2", "agent-1", now.Add(-30*time.Minute), eventmodel.TypeCostTracked, eventmodel.SeverityInfo, map[string]any{"costUsd": 4.0}, nil)

	r := Rule{ConditionType: ConditionCostLimit, ConditionConfig: map[string]any{"maxCostUsd": 10.0, "scope": "daily"}}
	eval, err := evaluateCondition(store, nil, ctx, r, "agent-1", now)
	require.NoError(t, err)
	assert.True(t, eval.Triggered)
	assert.InDelta(t, 10.5, eval.ObservedValue, 0.001)
}

func TestEvaluateHealthScoreThreshold_UsesScorer(t *testing.T) {
	ctx := tenant.WithTenant(context.Background(), "acme")
	r := Rule{ConditionType: ConditionHealthScoreThreshold, ConditionConfig: map[string]any{"minScore": 50.0}}

	eval, err := evaluateCondition(nil, fakeScorer{score: 30}, ctx, r, "agent-1", time.Now())
	require.NoError(t, err)
	assert.True(t, eval.Triggered)

	eval, err = evaluateCondition(nil, fakeScorer{score: 90}, ctx, r, "agent-1", time.Now())
	require.NoError(t, err)
	assert.False(t, eval.Triggered)
}

func TestEvaluateCustomMetric_MeanAggregationWithOperator(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()
	seedEvent(t, store, ctx, "s1", "agent-1", now.Add(-2*time.Minute), eventmodel.TypeCustom, eventmodel.SeverityInfo,
		map[string]any{"metrics": map[string]any{"latencyMs": 100.0}}, nil)
	seedEvent(t, store, ctx, "s2", "agent-1", now.Add(-1*time.Minute), eventmodel.TypeCustom, eventmodel.SeverityInfo,
		map[string]any{"metrics": map[string]any{"latencyMs": 300.0}}, nil)

	r := Rule{ConditionType: ConditionCustomMetric, ConditionConfig: map[string]any{
		"windowMinutes": 5.0, "metricKeyPath": "metrics.latencyMs", "operator": "gte", "value": 150.0,
	}}
	eval, err := evaluateCondition(store, nil, ctx, r, "agent-1", now)
	require.NoError(t, err)
	assert.True(t, eval.Triggered)
	assert.InDelta(t, 200.0, eval.ObservedValue, 0.001)
}
