// Package eventbus implements the process-wide publish/subscribe fan-out
// used to feed analytics projections, the guardrail engine, and SSE
// streaming from the event store (spec §4.11). It provides no
// durability guarantees: on process restart, in-flight notifications
// are lost — the event itself is already durably persisted by the event
// store before it is ever published here.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

// DefaultHighWaterMark is the default per-subscriber buffer size before
// the bus starts dropping events for that subscriber.
const DefaultHighWaterMark = 256

// Filter decides whether a subscriber wants to see an event. Returning
// true delivers it.
type Filter func(e eventmodel.Event) bool

// MatchAll is a Filter that accepts every event.
func MatchAll(eventmodel.Event) bool { return true }

// MatchTenant returns a Filter accepting only events for tenantID,
// optionally narrowed further by sessionID/eventType when non-empty.
func MatchTenant(tenantID, sessionID string, eventType eventmodel.Type) Filter {
	return func(e eventmodel.Event) bool {
		if e.TenantID != tenantID {
			return false
		}
		if sessionID != "" && e.SessionID != sessionID {
			return false
		}
		if eventType != "" && e.EventType != eventType {
			return false
		}
		return true
	}
}

// Subscription is a live registration on the Bus. Events is closed when
// the subscription is cancelled via Unsubscribe.
type Subscription struct {
	id       uint64
	Events   <-chan eventmodel.Event
	events   chan eventmodel.Event
	filter   Filter
	dropped  atomic.Uint64
	bus      *Bus
}

// Dropped returns the number of events dropped for this subscriber
// because its buffer exceeded the high-water mark.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Unsubscribe removes the subscription from the bus and closes its
// channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Bus is an in-process publisher. Publishers call Emit; subscribers
// register with Subscribe and drain Subscription.Events. A subscriber
// whose buffer is full never blocks the publisher — its event is
// dropped and its drop counter incremented instead (spec §4.11, §5).
type Bus struct {
	mu            sync.RWMutex
	subs          map[uint64]*Subscription
	nextID        uint64
	highWaterMark int
}

// New creates a Bus with the given per-subscriber buffer size. A
// highWaterMark of 0 uses DefaultHighWaterMark.
func New(highWaterMark int) *Bus {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	return &Bus{
		subs:          make(map[uint64]*Subscription),
		highWaterMark: highWaterMark,
	}
}

// Subscribe registers filter and returns a Subscription. Callers must
// eventually call Unsubscribe (e.g. via defer or on client disconnect).
func (b *Bus) Subscribe(filter Filter) *Subscription {
	if filter == nil {
		filter = MatchAll
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan eventmodel.Event, b.highWaterMark)
	sub := &Subscription{id: b.nextID, events: ch, Events: ch, filter: filter, bus: b}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.events)
	}
}

// Emit synchronously delivers e to every matching subscriber. Delivery
// never blocks: a subscriber whose channel is full has the event
// dropped and its counter incremented rather than stalling the
// publisher (spec §4.11).
func (b *Bus) Emit(e eventmodel.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter(e) {
			continue
		}
		select {
		case sub.events <- e:
		default:
			sub.dropped.Add(1)
			slog.Warn("eventbus: dropping event for slow subscriber",
				"event_id", e.ID, "event_type", e.EventType, "dropped_total", sub.dropped.Load())
		}
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
