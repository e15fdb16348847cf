package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func newTestScorer(t *testing.T) (*Scorer, *embedded.Store) {
	t.Helper()
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	scorer, err := NewScorer(store, store, Weights{})
	require.NoError(t, err)
	return scorer, store
}

func seedSession(t *testing.T, store *embedded.Store, ctx tenant.Context, sess storage.Session) {
	t.Helper()
	require.NoError(t, store.UpsertSession(ctx, sess))
}

func TestScorer_Score_PerfectAgentScoresHigh(t *testing.T) {
	scorer, store := newTestScorer(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		ended := now.Add(-10 * time.Second)
		seedSession(t, store, ctx, storage.Session{
			ID: "s" + string(rune('a'+i)), TenantID: "acme", AgentID: "agent-1",
			StartedAt: now.Add(-20 * time.Second), EndedAt: &ended,
			Status: storage.SessionCompleted, CostUSD: 0.001,
		})
	}

	score, err := scorer.Score(ctx, "agent-1", 7)
	require.NoError(t, err)
	assert.Greater(t, score.Overall, 90.0)
}

func TestScorer_Score_ErrorHeavyAgentScoresLow(t *testing.T) {
	scorer, store := newTestScorer(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		ended := now.Add(-700 * time.Second)
		seedSession(t, store, ctx, storage.Session{
			ID: "s" + string(rune('a'+i)), TenantID: "acme", AgentID: "agent-1",
			StartedAt: now.Add(-900 * time.Second), EndedAt: &ended,
			Status: storage.SessionError, ErrorCount: 1, CostUSD: 0.50,
		})
	}

	score, err := scorer.Score(ctx, "agent-1", 7)
	require.NoError(t, err)
	assert.Less(t, score.Overall, 50.0)
}

func TestScorer_OverallScore_NoSessionsIsPerfect(t *testing.T) {
	scorer, _ := newTestScorer(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	score, err := scorer.OverallScore(ctx, "agent-unknown")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)
}

func TestPiecewiseLinear_InterpolatesBetweenPoints(t *testing.T) {
	assert.Equal(t, 100.0, piecewiseLinear(0, costEfficiencyPoints))
	assert.InDelta(t, 70.0, piecewiseLinear(0.01, costEfficiencyPoints), 0.01)
	assert.Equal(t, 0.0, piecewiseLinear(0.5, costEfficiencyPoints))
	assert.InDelta(t, 85.0, piecewiseLinear(0.005, costEfficiencyPoints), 0.5)
}

func TestWeights_Validate_RejectsOutOfRangeSum(t *testing.T) {
	w := Weights{ErrorRate: 0.5, CostEfficiency: 0.5, ToolSuccess: 0.5}
	require.Error(t, w.Validate())
}

func TestNewScorer_UsesDefaultWeightsWhenZero(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	scorer, err := NewScorer(store, store, Weights{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scorer.weights.Sum(), 0.001)
}
