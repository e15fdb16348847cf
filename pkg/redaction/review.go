package redaction

import (
	"sync"

	"github.com/google/uuid"
)

// PendingReview is one artifact awaiting a human decision.
type PendingReview struct {
	ID       string
	TenantID string
	Content  string
	Findings []Finding
}

// ReviewQueue enqueues artifacts the pipeline could not safely release
// on its own (spec §4.5 layer 600). Production deployments back this
// with durable storage; InMemoryReviewQueue is the default used by
// tests and single-process deployments.
type ReviewQueue interface {
	Enqueue(review PendingReview) (reviewID string, err error)
}

// InMemoryReviewQueue holds pending reviews in a guarded map. Entries
// are never evicted automatically — an operator resolves them through
// the review API and removes them explicitly.
type InMemoryReviewQueue struct {
	mu    sync.Mutex
	items map[string]PendingReview
}

// NewInMemoryReviewQueue returns an empty queue.
func NewInMemoryReviewQueue() *InMemoryReviewQueue {
	return &InMemoryReviewQueue{items: make(map[string]PendingReview)}
}

func (q *InMemoryReviewQueue) Enqueue(review PendingReview) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	review.ID = uuid.NewString()
	q.items[review.ID] = review
	return review.ID, nil
}

// Get returns the pending review for id, if any.
func (q *InMemoryReviewQueue) Get(id string) (PendingReview, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.items[id]
	return r, ok
}

// Resolve removes a pending review once an operator has acted on it.
func (q *InMemoryReviewQueue) Resolve(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, id)
}
