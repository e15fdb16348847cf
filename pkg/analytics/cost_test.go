package analytics

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

func seedLLMCall(t *testing.T, store *embedded.Store, ctx tenant.Context, sessionID string, ts time.Time, model string, inputTokens, toolCount int, success bool) {
	t.Helper()
	ev := eventmodel.Event{
		Timestamp: ts, TenantID: ctx.ID(), SessionID: sessionID, AgentID: "agent-1",
		EventType: eventmodel.TypeLLMCall,
		Payload: map[string]any{
			"model":        model,
			"inputTokens":  float64(inputTokens),
			"toolCount":    float64(toolCount),
			"outputTokens": float64(50),
			"success":      success,
		},
	}.WithDefaults()
	ev.Hash = eventmodel.EventHash(ev)
	_, err := store.InsertEvents(ctx, []eventmodel.Event{ev})
	require.NoError(t, err)
}

func TestCostRecommendations_RecommendsCheaperModelWithComparableSuccess(t *testing.T) {
	scorer, store := newTestScorer(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		seedLLMCall(t, store, ctx, "s-expensive", now.Add(-time.Duration(i)*time.Minute), "gpt-4o", 500, 1, true)
	}
	for i := 0; i < 12; i++ {
		seedLLMCall(t, store, ctx, "s-cheap", now.Add(-time.Duration(i)*time.Minute), "gpt-4o-mini", 500, 1, true)
	}

	pricing := CostTable{"gpt-4o": 0.02, "gpt-4o-mini": 0.002}
	recs, err := scorer.CostRecommendations(ctx, "agent-1", 30, pricing, DefaultComplexityThresholds())
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, "gpt-4o", recs[0].CurrentModel)
	assert.Equal(t, "gpt-4o-mini", recs[0].RecommendedModel)
	assert.Equal(t, ComplexitySimple, recs[0].Tier)
	assert.Greater(t, recs[0].ProjectedMonthlySavings, 0.0)
}

func TestCostRecommendations_SkipsBelowMinimumCallCount(t *testing.T) {
	scorer, store := newTestScorer(t)
	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		seedLLMCall(t, store, ctx, "s1", now.Add(-time.Duration(i)*time.Minute), "gpt-4o", 500, 1, true)
	}

	pricing := CostTable{"gpt-4o": 0.02, "gpt-4o-mini": 0.002}
	recs, err := scorer.CostRecommendations(ctx, "agent-1", 30, pricing, DefaultComplexityThresholds())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClassifyComplexity_BucketsByTokensAndTools(t *testing.T) {
	th := DefaultComplexityThresholds()
	assert.Equal(t, ComplexitySimple, classifyComplexity(100, 0, th))
	assert.Equal(t, ComplexityModerate, classifyComplexity(5000, 3, th))
	assert.Equal(t, ComplexityComplex, classifyComplexity(20000, 10, th))
}

func TestConfidenceFor_MapsCallCountToConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, confidenceFor(120))
	assert.Equal(t, ConfidenceMedium, confidenceFor(60))
	assert.Equal(t, ConfidenceLow, confidenceFor(15))
}
