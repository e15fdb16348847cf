// Package embedding stores vector embeddings alongside the text they were
// derived from and answers cosine-similarity nearest-neighbour queries
// (spec §4.4). It is backend-agnostic: the same Store implementation runs
// against either storage dialect by supplying the right placeholder style.
package embedding

import "time"

// SourceType identifies what an embedding was derived from.
type SourceType string

const (
	SourceEvent   SourceType = "event"
	SourceSession SourceType = "session"
	SourceLesson  SourceType = "lesson"
)

// Embedding is a stored vector plus its provenance (spec §4.4).
type Embedding struct {
	ID          string
	TenantID    string
	SourceType  SourceType
	SourceID    string
	Text        string
	ContentHash string
	Vector      []float32
	Model       string
	Dimensions  int
	CreatedAt   time.Time
}

// SearchFilter narrows SimilaritySearch.
type SearchFilter struct {
	SourceType SourceType
	From       *time.Time
	To         *time.Time
	Limit      int
	MinScore   float64
}

// Result pairs a stored embedding with its similarity score against the
// query vector.
type Result struct {
	Embedding Embedding
	Score     float64
}
