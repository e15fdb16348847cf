package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

func TestBus_DeliversToMatchingSubscriber(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(MatchTenant("t1", "", ""))
	defer sub.Unsubscribe()

	b.Emit(eventmodel.Event{ID: "e1", TenantID: "t1"})
	b.Emit(eventmodel.Event{ID: "e2", TenantID: "t2"})

	select {
	case got := <-sub.Events:
		assert.Equal(t, "e1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case got := <-sub.Events:
		t.Fatalf("unexpected second event delivered: %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_DropsForSlowSubscriberWithoutBlocking(t *testing.T) {
	b := New(1)
	sub := b.Subscribe(MatchAll)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(eventmodel.Event{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}

	require.Greater(t, sub.Dropped(), uint64(0))
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(MatchAll)
	sub.Unsubscribe()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())
}
