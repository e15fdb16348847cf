package guardrail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/storage/embedded"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// withSSRFGuardDisabled points ssrfGuard at a no-op for the duration of
// the test, since httptest servers bind to loopback addresses that the
// real guard must always reject.
func withSSRFGuardDisabled(t *testing.T) {
	t.Helper()
	original := ssrfGuard
	ssrfGuard = func(string) error { return nil }
	t.Cleanup(func() { ssrfGuard = original })
}

func seedAgent(t *testing.T, store *embedded.Store, ctx tenant.Context, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.UpsertAgent(ctx, storage.Agent{ID: id, TenantID: ctx.ID(), Name: id, FirstSeen: now, LastSeen: now}))
}

func TestDispatchPauseAgent_SetsPausedAtAndReason(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	seedAgent(t, store, ctx, "agent-1")

	r := Rule{TenantID: "acme", Name: "too many errors", ActionType: ActionPauseAgent, ActionConfig: map[string]any{"message": "paused by guardrail"}}
	outcome := dispatchAction(context.Background(), store, nil, r, "agent-1", Evaluation{})
	assert.True(t, outcome.Executed)

	agent, err := store.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, agent.PausedAt)
	require.NotNil(t, agent.PauseReason)
	assert.Equal(t, "paused by guardrail", *agent.PauseReason)
}

func TestDispatchDowngradeModel_SetsModelOverride(t *testing.T) {
	store, err := embedded.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := tenant.WithTenant(context.Background(), "acme")
	seedAgent(t, store, ctx, "agent-1")

	r := Rule{TenantID: "acme", ActionType: ActionDowngradeModel, ActionConfig: map[string]any{"targetModel": "gpt-4o-mini"}}
	outcome := dispatchAction(context.Background(), store, nil, r, "agent-1", Evaluation{})
	assert.True(t, outcome.Executed)

	agent, err := store.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, agent.ModelOverride)
	assert.Equal(t, "gpt-4o-mini", *agent.ModelOverride)
}

func TestDispatchNotifyWebhook_PostsPayload(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	withSSRFGuardDisabled(t)

	r := Rule{Name: "cost spike", ActionType: ActionNotifyWebhook, ActionConfig: map[string]any{"url": srv.URL}}
	outcome := dispatchAction(context.Background(), nil, srv.Client(), r, "agent-1", Evaluation{ObservedValue: 99, Threshold: 50})
	require.True(t, outcome.Executed)
	assert.Equal(t, "cost spike", received.RuleName)
	assert.Equal(t, 99.0, received.ObservedValue)
}

func TestDispatchNotifyWebhook_RejectsLoopbackTarget(t *testing.T) {
	r := Rule{ActionType: ActionNotifyWebhook, ActionConfig: map[string]any{"url": "http://127.0.0.1:9999/hook"}}
	outcome := dispatchAction(context.Background(), nil, http.DefaultClient, r, "agent-1", Evaluation{})
	assert.False(t, outcome.Executed)
	assert.Contains(t, outcome.Result, "not allowed")
}

func TestDispatchNotifyWebhook_RejectsNonHTTPScheme(t *testing.T) {
	r := Rule{ActionType: ActionNotifyWebhook, ActionConfig: map[string]any{"url": "file:///etc/passwd"}}
	outcome := dispatchAction(context.Background(), nil, http.DefaultClient, r, "agent-1", Evaluation{})
	assert.False(t, outcome.Executed)
	assert.Contains(t, outcome.Result, "scheme")
}

func TestDispatchAgentGatePolicy_PutsToPolicyURL(t *testing.T) {
	var method string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method = req.Method
		path = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	withSSRFGuardDisabled(t)

	r := Rule{ActionType: ActionAgentGatePolicy, ActionConfig: map[string]any{"configuredUrl": srv.URL, "policyId": "pol-1", "action": "tighten"}}
	outcome := dispatchAction(context.Background(), nil, srv.Client(), r, "agent-1", Evaluation{})
	require.True(t, outcome.Executed)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/api/policies/pol-1", path)
}

func TestGuardAgainstSSRF_AllowsPublicIPLiteral(t *testing.T) {
	err := guardAgainstSSRF("https://8.8.8.8/webhook")
	assert.NoError(t, err)
}

func TestGuardAgainstSSRF_RejectsPrivateRangeLiteral(t *testing.T) {
	err := guardAgainstSSRF("http://10.0.0.5/hook")
	assert.Error(t, err)
}

func TestGuardAgainstSSRF_RejectsLinkLocalMetadataAddress(t *testing.T) {
	err := guardAgainstSSRF("http://169.254.169.254/latest/meta-data")
	assert.Error(t, err)
}
