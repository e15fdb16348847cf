package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_SetGetInvalidate(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()
	k := Key{Prefix: "al_test_abc", SecretHash: "hash"}

	_, ok := c.Get(ctx, k.Prefix)
	assert.False(t, ok)

	c.Set(ctx, k)
	got, ok := c.Get(ctx, k.Prefix)
	assert.True(t, ok)
	assert.Equal(t, k.SecretHash, got.SecretHash)

	c.Invalidate(ctx, k.Prefix)
	_, ok = c.Get(ctx, k.Prefix)
	assert.False(t, ok)
}

func TestMemoryCache_ExpiresEntriesAfterTTL(t *testing.T) {
	c := NewMemoryCache(10, time.Nanosecond)
	ctx := context.Background()
	k := Key{Prefix: "al_test_abc", SecretHash: "hash"}

	c.Set(ctx, k)
	time.Sleep(time.Millisecond)
	_, ok := c.Get(ctx, k.Prefix)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsOldestEntryOnOverflow(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, Key{Prefix: "al_test_1", SecretHash: "h1"})
	c.Set(ctx, Key{Prefix: "al_test_2", SecretHash: "h2"})
	c.Set(ctx, Key{Prefix: "al_test_3", SecretHash: "h3"})

	_, ok := c.Get(ctx, "al_test_1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "al_test_3")
	assert.True(t, ok)
}
