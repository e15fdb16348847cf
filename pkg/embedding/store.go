package embedding

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// candidateCap bounds the fallback similarity search's in-memory scan
// (spec §4.4, "load at most 10 000 candidate rows").
const candidateCap = 10000

// Dialect isolates the two SQL placeholder styles the backends use so
// Store's query text stays identical across both (spec §4.2's
// dialect-neutral contract, extended to the embedding table).
type Dialect struct {
	Name           string
	Placeholder    func(n int) string
	CreateTableSQL string
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	CreateTableSQL: `CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, source_type TEXT NOT NULL, source_id TEXT NOT NULL,
		text TEXT NOT NULL, content_hash TEXT NOT NULL, vector BLOB NOT NULL, model TEXT NOT NULL, dimensions INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_source ON embeddings(tenant_id, source_type, source_id);`,
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	CreateTableSQL: `CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, source_type TEXT NOT NULL, source_id TEXT NOT NULL,
		text TEXT NOT NULL, content_hash TEXT NOT NULL, vector BYTEA NOT NULL, model TEXT NOT NULL, dimensions INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_source ON embeddings(tenant_id, source_type, source_id);`,
}

// contentHash returns the SHA-256 hex digest of text, stored alongside
// every embedding so a caller can detect whether the source text changed
// without re-decoding the vector (spec §4.4).
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store is a SQL-backed embedding store. It always runs the fallback
// (load-then-score-in-memory) similarity search: no library in reach
// supplies an approximate-nearest-neighbour index (no pgvector driver in
// the dependency set), so the native path described in spec §4.4 stays
// an unimplemented capability probe — see SupportsNativeSearch.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the dialect's schema and returns a ready Store.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.Exec(dialect.CreateTableSQL); err != nil {
		return nil, fmt.Errorf("apply embedding schema: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// SupportsNativeSearch always reports false for this Store. Kept as a
// named capability (rather than silently only ever running fallback) so
// a future native backend can be swapped in behind the same interface
// without changing call sites.
func (s *Store) SupportsNativeSearch() bool { return false }

func timeFormat(dialect Dialect, t time.Time) any {
	if dialect.Name == "postgres" {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// StoreVector implements spec §4.4's store() operation: update in place
// on a (tenant, sourceType, sourceId) match, otherwise insert fresh.
func (s *Store) StoreVector(ctx tenant.Context, e Embedding) error {
	p := s.dialect.Placeholder
	var existingID string
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM embeddings WHERE tenant_id = %s AND source_type = %s AND source_id = %s`, p(1), p(2), p(3)),
		ctx.ID(), string(e.SourceType), e.SourceID)
	err := row.Scan(&existingID)

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.ContentHash = contentHash(e.Text)

	switch err {
	case nil:
		_, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE embeddings SET text = %s, content_hash = %s, vector = %s, model = %s, dimensions = %s
				WHERE tenant_id = %s AND id = %s`, p(1), p(2), p(3), p(4), p(5), p(6), p(7)),
			e.Text, e.ContentHash, EncodeVector(e.Vector), e.Model, e.Dimensions, ctx.ID(), existingID)
		return err
	case sql.ErrNoRows:
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		_, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO embeddings (id, tenant_id, source_type, source_id, text, content_hash, vector, model, dimensions, created_at)
				VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`, p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10)),
			e.ID, ctx.ID(), string(e.SourceType), e.SourceID, e.Text, e.ContentHash, EncodeVector(e.Vector), e.Model, e.Dimensions,
			timeFormat(s.dialect, e.CreatedAt))
		return err
	default:
		return err
	}
}

// Delete removes the embedding for a (sourceType, sourceId) tuple.
func (s *Store) Delete(ctx tenant.Context, sourceType SourceType, sourceID string) error {
	p := s.dialect.Placeholder
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM embeddings WHERE tenant_id = %s AND source_type = %s AND source_id = %s`, p(1), p(2), p(3)),
		ctx.ID(), string(sourceType), sourceID)
	return err
}

// SimilaritySearch implements spec §4.4's fallback strategy: scan up to
// candidateCap matching rows, score each by cosine similarity, filter by
// minScore, and return the top Limit ordered descending.
func (s *Store) SimilaritySearch(ctx tenant.Context, query []float32, filter SearchFilter) ([]Result, error) {
	p := s.dialect.Placeholder
	where := fmt.Sprintf(`WHERE tenant_id = %s`, p(1))
	args := []any{ctx.ID()}
	arg := func(v any) string {
		args = append(args, v)
		return p(len(args))
	}

	if filter.SourceType != "" {
		where += ` AND source_type = ` + arg(string(filter.SourceType))
	}
	if filter.From != nil {
		where += ` AND created_at >= ` + arg(timeFormat(s.dialect, *filter.From))
	}
	if filter.To != nil {
		where += ` AND created_at <= ` + arg(timeFormat(s.dialect, *filter.To))
	}

	query := fmt.Sprintf(`SELECT id, tenant_id, source_type, source_id, text, content_hash, vector, model, dimensions, created_at
		FROM embeddings %s LIMIT %s`, where, arg(candidateCap))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Embedding
	for rows.Next() {
		var e Embedding
		var sourceType, createdAt string
		var vector []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &sourceType, &e.SourceID, &e.Text, &e.ContentHash, &vector, &e.Model, &e.Dimensions, &createdAt); err != nil {
			return nil, err
		}
		e.SourceType = SourceType(sourceType)
		e.Vector = DecodeVector(vector)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(candidates) == candidateCap {
		slog.Warn("embedding similarity search hit candidate cap, result may be incomplete",
			"tenant", ctx.ID(), "cap", candidateCap)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(query, c.Vector)
		if score < filter.MinScore {
			continue
		}
		results = append(results, Result{Embedding: c, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
