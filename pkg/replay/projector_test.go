package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func seedChainedEvent(t *testing.T, store *embedded.Store, ctx tenant.Context, sessionID string, ts time.Time, eventType eventmodel.Type, payload map[string]any, prevHash *string) string {
	t.Helper()
	ev := eventmodel.Event{
		Timestamp: ts, TenantID: ctx.ID(), SessionID: sessionID, AgentID: "agent-1",
		EventType: eventType, Payload: payload, PrevHash: prevHash,
	}.WithDefaults()
	ev.Hash = eventmodel.EventHash(ev)
	_, err := store.InsertEvents(ctx, []eventmodel.Event{ev})
	require.NoError(t, err)
	return ev.Hash
}

func testReplayConfig() config.ReplayConfig {
	return config.ReplayConfig{CacheTTL: 10 * time.Minute, CacheSize: 100, MaxPageSize: 5000, RollingLLMWindow: 50}
}

func TestProjector_Replay_BuildsStepsSummaryAndChainValidity(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	h1 := seedChainedEvent(t, store, ctx, "sess-1", now, eventmodel.TypeSessionStarted, nil, nil)
	h2 := seedChainedEvent(t, store, ctx, "sess-1", now.Add(time.Second), eventmodel.TypeToolCall, map[string]any{"toolName": "kubectl"}, &h1)
	h3 := seedChainedEvent(t, store, ctx, "sess-1", now.Add(2*time.Second), eventmodel.TypeToolResponse, nil, &h2)
	_ = seedChainedEvent(t, store, ctx, "sess-1", now.Add(3*time.Second), eventmodel.TypeSessionEnded, nil, &h3)

	p := NewProjector(store, testReplayConfig())
	replay, err := p.Replay(ctx, "sess-1", 0, 10, nil, true)
	require.NoError(t, err)

	assert.True(t, replay.ChainValid)
	assert.Len(t, replay.Steps, 4)
	assert.Equal(t, 1, replay.Summary.TotalToolCalls)
	assert.Contains(t, replay.Summary.DistinctToolNames, "kubectl")
	assert.Equal(t, 4, replay.Total)
}

func TestProjector_Replay_PaginatesWithoutLosingSummary(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	var prev *string
	for i := 0; i < 20; i++ {
		hash := seedChainedEvent(t, store, ctx, "sess-1", now.Add(time.Duration(i)*time.Second), eventmodel.TypeToolCall, map[string]any{"toolName": "t"}, prev)
		prev = &hash
	}

	p := NewProjector(store, testReplayConfig())
	page, err := p.Replay(ctx, "sess-1", 5, 5, nil, true)
	require.NoError(t, err)

	assert.Len(t, page.Steps, 5)
	assert.Equal(t, 5, page.Steps[0].Index)
	assert.Equal(t, 20, page.Summary.TotalToolCalls)
	assert.Equal(t, 20, page.Total)
	assert.True(t, page.HasMore, "offset 5 + 5 steps < 20 total")

	last, err := p.Replay(ctx, "sess-1", 15, 5, nil, true)
	require.NoError(t, err)
	assert.False(t, last.HasMore, "offset 15 + 5 steps == 20 total")
}

func TestProjector_Replay_FiltersByEventType(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()

	h1 := seedChainedEvent(t, store, ctx, "sess-1", now, eventmodel.TypeToolCall, nil, nil)
	_ = seedChainedEvent(t, store, ctx, "sess-1", now.Add(time.Second), eventmodel.TypeToolResponse, nil, &h1)

	p := NewProjector(store, testReplayConfig())
	replay, err := p.Replay(ctx, "sess-1", 0, 10, []eventmodel.Type{eventmodel.TypeToolResponse}, true)
	require.NoError(t, err)

	require.Len(t, replay.Steps, 1)
	assert.Equal(t, eventmodel.TypeToolResponse, replay.Steps[0].Event.EventType)
}

func TestProjector_Replay_ExcludesContextWhenRequested(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()
	h1 := seedChainedEvent(t, store, ctx, "sess-1", now, eventmodel.TypeLLMCall, nil, nil)
	_ = seedChainedEvent(t, store, ctx, "sess-1", now.Add(time.Second), eventmodel.TypeLLMResponse, nil, &h1)

	p := NewProjector(store, testReplayConfig())
	replay, err := p.Replay(ctx, "sess-1", 0, 10, nil, false)
	require.NoError(t, err)

	for _, step := range replay.Steps {
		assert.Nil(t, step.Context.RecentLLMExchanges)
		assert.Nil(t, step.Context.ToolResults)
	}
}

func TestProjector_Replay_ServesCachedProjectionOnSecondCall(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := tenant.WithTenant(context.Background(), "acme")
	now := time.Now().UTC()
	_ = seedChainedEvent(t, store, ctx, "sess-1", now, eventmodel.TypeSessionStarted, nil, nil)

	p := NewProjector(store, testReplayConfig())
	first, err := p.Replay(ctx, "sess-1", 0, 10, nil, true)
	require.NoError(t, err)

	_, cached := p.cache.get(cacheKey{tenantID: "acme", sessionID: "sess-1"})
	assert.True(t, cached)

	second, err := p.Replay(ctx, "sess-1", 0, 10, nil, true)
	require.NoError(t, err)
	assert.Equal(t, first.ChainValid, second.ChainValid)
}

func TestCache_EvictsOldestEntryOnOverflow(t *testing.T) {
	c := newCache(2, time.Minute)
	c.put(cacheKey{tenantID: "t", sessionID: "s1"}, &projectedSession{})
	c.put(cacheKey{tenantID: "t", sessionID: "s2"}, &projectedSession{})
	c.put(cacheKey{tenantID: "t", sessionID: "s3"}, &projectedSession{})

	_, ok := c.get(cacheKey{tenantID: "t", sessionID: "s1"})
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.get(cacheKey{tenantID: "t", sessionID: "s3"})
	assert.True(t, ok)
}

func TestCache_ExpiresEntriesAfterTTL(t *testing.T) {
	c := newCache(10, time.Millisecond)
	c.put(cacheKey{tenantID: "t", sessionID: "s1"}, &projectedSession{})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.get(cacheKey{tenantID: "t", sessionID: "s1"})
	assert.False(t, ok)
}
