package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

func testEvents() []eventmodel.Event {
	return []eventmodel.Event{{
		SessionID: "sess-1", AgentID: "agent-1", EventType: eventmodel.TypeToolCall,
		Payload: map[string]any{"toolName": "search"},
	}}
}

func TestClient_PostEvents_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": []string{"evt-1"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", WithRetryPolicy(RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}))
	ids, err := c.PostEvents(t.Context(), testEvents())
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-1"}, ids)
}

func TestClient_PostEvents_RetriesRateLimitThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": []string{"evt-1"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", WithRetryPolicy(RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}))
	ids, err := c.PostEvents(t.Context(), testEvents())
	require.NoError(t, err)
	assert.Equal(t, []string{"evt-1"}, ids)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClient_PostEvents_ValidationErrorNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"events must not be empty"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", WithRetryPolicy(RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}))
	_, err := c.PostEvents(t.Context(), testEvents())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
