package storage

import (
	"sort"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

// PartitionBySession groups a batch by session id, preserving each
// session's relative insertion order (spec §4.3 step 1).
func PartitionBySession(events []eventmodel.Event) map[string][]eventmodel.Event {
	out := make(map[string][]eventmodel.Event)
	for _, e := range events {
		out[e.SessionID] = append(out[e.SessionID], e)
	}
	return out
}

// SessionIDsSorted returns the session ids of a partitioned batch in a
// stable order, so callers process partitions deterministically.
func SessionIDsSorted(partitions map[string][]eventmodel.Event) []string {
	ids := make([]string, 0, len(partitions))
	for id := range partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VerifyChain checks one session partition against the store's current
// tail hash and returns the new tail (the last event's hash) on success.
// It enforces both halves of the chain invariant (spec §3, §4.3 step 3):
//
//  1. The first event's PrevHash equals tailHash (nil tail ⇒ nil prevHash).
//  2. Every event's self-hash matches a fresh recomputation over its
//     canonical fields, and every subsequent event's PrevHash equals the
//     previous event's Hash.
func VerifyChain(tailHash *string, partition []eventmodel.Event) (newTail string, err error) {
	if len(partition) == 0 {
		if tailHash != nil {
			return *tailHash, nil
		}
		return "", nil
	}

	prev := tailHash
	for i, e := range partition {
		if !samePrevHash(e.PrevHash, prev) {
			return "", apperrors.HashChainError(
				"event %s (position %d): prevHash %s does not match expected tail %s",
				e.ID, i, deref(e.PrevHash), deref(prev))
		}

		recomputed := eventmodel.EventHash(e)
		if recomputed != e.Hash {
			return "", apperrors.HashChainError(
				"event %s: self-hash mismatch (stored %s, recomputed %s)", e.ID, e.Hash, recomputed)
		}

		hash := e.Hash
		prev = &hash
	}

	return *prev, nil
}

// ExistingHash looks up the already-persisted hash for an event id, if
// any. Backends implement this against their own storage.
type ExistingHash func(eventID string) (hash string, exists bool)

// VerifyChainDedup is VerifyChain generalized with idempotent-duplicate
// handling (spec §4.3, "Duplicate event ids are absorbed silently"): an
// event whose id already exists is skipped from the returned newEvents
// slice when its stored hash matches, or rejected with a ConflictError
// when it doesn't (an id reused for different content). The chain
// pointer advances across both new and already-persisted events so a
// batch that re-sends an already-committed prefix still validates.
func VerifyChainDedup(tailHash *string, partition []eventmodel.Event, existing ExistingHash) (newTail string, newEvents []eventmodel.Event, err error) {
	prev := tailHash

	for i, e := range partition {
		if storedHash, ok := existing(e.ID); ok {
			if storedHash != e.Hash {
				return "", nil, apperrors.ConflictError("event id %s already exists with a different hash", e.ID)
			}
			hash := storedHash
			prev = &hash
			continue
		}

		if !samePrevHash(e.PrevHash, prev) {
			return "", nil, apperrors.HashChainError(
				"event %s (position %d): prevHash %s does not match expected tail %s",
				e.ID, i, deref(e.PrevHash), deref(prev))
		}

		recomputed := eventmodel.EventHash(e)
		if recomputed != e.Hash {
			return "", nil, apperrors.HashChainError(
				"event %s: self-hash mismatch (stored %s, recomputed %s)", e.ID, e.Hash, recomputed)
		}

		newEvents = append(newEvents, e)
		hash := e.Hash
		prev = &hash
	}

	if prev == nil {
		return "", newEvents, nil
	}
	return *prev, newEvents, nil
}

func samePrevHash(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
