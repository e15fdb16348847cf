package embedding

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(db, SQLite)
	require.NoError(t, err)
	return s
}

func TestStore_StoreVector_InsertsThenUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	e := Embedding{SourceType: SourceEvent, SourceID: "evt-1", Text: "hello", Vector: []float32{1, 0, 0}, Model: "m1", Dimensions: 3}
	require.NoError(t, s.StoreVector(ctx, e))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, SearchFilter{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	firstID := results[0].Embedding.ID

	e.Text = "hello updated"
	e.Vector = []float32{0, 1, 0}
	require.NoError(t, s.StoreVector(ctx, e))

	results, err = s.SimilaritySearch(ctx, []float32{0, 1, 0}, SearchFilter{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1, "update must replace in place, not insert a second row")
	assert.Equal(t, firstID, results[0].Embedding.ID)
	assert.Equal(t, "hello updated", results[0].Embedding.Text)
	assert.Equal(t, contentHash("hello updated"), results[0].Embedding.ContentHash)
}

func TestStore_SimilaritySearch_OrdersByScoreAndRespectsMinScore(t *testing.T) {
	s := openTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	require.NoError(t, s.StoreVector(ctx, Embedding{SourceType: SourceEvent, SourceID: "a", Vector: []float32{1, 0}, Dimensions: 2}))
	require.NoError(t, s.StoreVector(ctx, Embedding{SourceType: SourceEvent, SourceID: "b", Vector: []float32{0, 1}, Dimensions: 2}))

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, SearchFilter{MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Embedding.SourceID)
}

func TestStore_Delete_RemovesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "acme")

	require.NoError(t, s.StoreVector(ctx, Embedding{SourceType: SourceSession, SourceID: "sess-1", Vector: []float32{1}, Dimensions: 1}))
	require.NoError(t, s.Delete(ctx, SourceSession, "sess-1"))

	results, err := s.SimilaritySearch(ctx, []float32{1}, SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_TenantIsolation(t *testing.T) {
	s := openTestStore(t)
	acme := tenant.WithTenant(context.Background(), "acme")
	globex := tenant.WithTenant(context.Background(), "globex")

	require.NoError(t, s.StoreVector(acme, Embedding{SourceType: SourceEvent, SourceID: "x", Vector: []float32{1}, Dimensions: 1}))

	results, err := s.SimilaritySearch(globex, []float32{1}, SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
