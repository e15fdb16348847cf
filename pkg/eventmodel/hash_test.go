package eventmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEventHash_Deterministic(t *testing.T) {
	f := HashFields{
		ID:        "e1",
		Timestamp: "2026-01-01T00:00:00Z",
		SessionID: "s1",
		AgentID:   "a1",
		EventType: TypeToolCall,
		Severity:  SeverityInfo,
		Payload:   map[string]any{"b": 1, "a": 2},
		Metadata:  map[string]any{"z": "y"},
	}

	h1 := ComputeEventHash(f)
	h2 := ComputeEventHash(f)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestComputeEventHash_KeyOrderIndependent(t *testing.T) {
	base := HashFields{
		ID:        "e1",
		Timestamp: "2026-01-01T00:00:00Z",
		SessionID: "s1",
		AgentID:   "a1",
		EventType: TypeToolCall,
		Severity:  SeverityInfo,
	}

	f1 := base
	f1.Payload = map[string]any{"a": 1, "b": 2}
	f2 := base
	f2.Payload = map[string]any{"b": 2, "a": 1}

	require.Equal(t, ComputeEventHash(f1), ComputeEventHash(f2))
}

func TestComputeEventHash_PrevHashAffectsDigest(t *testing.T) {
	base := HashFields{
		ID:        "e2",
		Timestamp: "2026-01-01T00:00:01Z",
		SessionID: "s1",
		AgentID:   "a1",
		EventType: TypeToolResponse,
		Severity:  SeverityInfo,
	}
	prev := "deadbeef"

	withNil := ComputeEventHash(base)
	f := base
	f.PrevHash = &prev
	withPrev := ComputeEventHash(f)

	assert.NotEqual(t, withNil, withPrev)
}

func TestEventHash_RoundTripsThroughJSON(t *testing.T) {
	// "Hash recomputation" law (spec §8): computeEventHash(decode(encode(e))) == e.hash
	e := Event{
		ID:        "e3",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SessionID: "s1",
		AgentID:   "a1",
		EventType: TypeLLMCall,
		Severity:  SeverityInfo,
		Payload:   map[string]any{"model": "x"},
		Metadata:  map[string]any{},
	}
	e.Hash = EventHash(e)

	recomputed := EventHash(e)
	assert.Equal(t, e.Hash, recomputed)
}
