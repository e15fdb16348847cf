package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func seedAgentAndEvent(t *testing.T, store *embedded.Store, tenantID string, ts time.Time) {
	t.Helper()
	ctx := tenant.WithTenant(context.Background(), tenantID)

	require.NoError(t, store.UpsertAgent(ctx, storage.Agent{
		ID: "agent-1", TenantID: tenantID, Name: "agent-1",
		FirstSeen: ts, LastSeen: ts,
	}))

	ev := eventmodel.Event{
		Timestamp: ts, TenantID: tenantID, SessionID: "sess-1", AgentID: "agent-1",
		EventType: eventmodel.TypeSessionStarted,
	}.WithDefaults()
	ev.Hash = eventmodel.EventHash(ev)
	_, err := store.InsertEvents(ctx, []eventmodel.Event{ev})
	require.NoError(t, err)
}

func TestService_RunAll_PurgesTenantsPastCutoff(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Now().UTC().AddDate(0, 0, -100)
	seedAgentAndEvent(t, store, "acme", old)

	cfg := config.RetentionConfig{DefaultRetentionDays: 30}
	svc := NewService(store, cfg)
	svc.RunAll(context.Background())

	ctx := tenant.WithTenant(context.Background(), "acme")
	page, err := store.QueryEvents(ctx, storage.EventFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestService_RunAll_SkipsTenantWithNonPositiveRetention(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Now().UTC().AddDate(0, 0, -100)
	seedAgentAndEvent(t, store, "acme", old)

	cfg := config.RetentionConfig{
		DefaultRetentionDays: 30,
		TenantOverrides:      map[string]int{"acme": 0},
	}
	svc := NewService(store, cfg)
	svc.RunAll(context.Background())

	ctx := tenant.WithTenant(context.Background(), "acme")
	page, err := store.QueryEvents(ctx, storage.EventFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "tenant with retentionDays <= 0 must be skipped entirely")
}

func TestService_RunAll_UsesTierLookupForResolution(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Now().UTC().AddDate(0, 0, -10)
	seedAgentAndEvent(t, store, "acme", old)

	cfg := config.RetentionConfig{
		DefaultRetentionDays: 1,
		TierDefaults:         map[string]int{"enterprise": 365},
	}
	svc := NewService(store, cfg, WithTierLookup(func(tenantID string) string {
		if tenantID == "acme" {
			return "enterprise"
		}
		return ""
	}))
	svc.RunAll(context.Background())

	ctx := tenant.WithTenant(context.Background(), "acme")
	page, err := store.QueryEvents(ctx, storage.EventFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "enterprise tier's 365-day retention should not have purged a 10-day-old event")
}

func TestService_RunAll_EmitsApproachingExpiryWarning(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	// 28 days old with a 30-day retention and 7-day lead: inside the
	// lead window (ages out at day 30, i.e. in 2 days) but not yet
	// purged.
	almostExpired := time.Now().UTC().AddDate(0, 0, -28)
	seedAgentAndEvent(t, store, "acme", almostExpired)

	var warnings []Warning
	cfg := config.RetentionConfig{DefaultRetentionDays: 30, WarningLeadDays: 7}
	svc := NewService(store, cfg, WithWarningSink(func(w Warning) {
		warnings = append(warnings, w)
	}))
	svc.RunAll(context.Background())

	require.Len(t, warnings, 1)
	assert.Equal(t, "acme", warnings[0].TenantID)
	assert.Equal(t, 1, warnings[0].RowsExpiring)

	ctx := tenant.WithTenant(context.Background(), "acme")
	page, err := store.QueryEvents(ctx, storage.EventFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "event is in the warning window but not yet past the purge cutoff")
}

func TestService_RunAll_PersistedOverrideTakesPriorityOverConfig(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Now().UTC().AddDate(0, 0, -10)
	seedAgentAndEvent(t, store, "acme", old)
	require.NoError(t, store.SetRetentionOverride(tenant.AsAdmin(context.Background()), "acme", 0))

	cfg := config.RetentionConfig{DefaultRetentionDays: 365}
	svc := NewService(store, cfg)
	svc.RunAll(context.Background())

	ctx := tenant.WithTenant(context.Background(), "acme")
	page, err := store.QueryEvents(ctx, storage.EventFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "persisted override of 0 should have disabled retention despite a 365-day config default")
}

func TestService_RunAll_NoTenantsIsANoop(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, config.RetentionConfig{DefaultRetentionDays: 30})
	svc.RunAll(context.Background())
}
