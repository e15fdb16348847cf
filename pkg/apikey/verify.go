package apikey

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
)

// Verifier authenticates a raw bearer key presented on a request,
// populating Cache on a store hit and rejecting revoked keys.
type Verifier struct {
	store Store
	cache Cache
	now   func() time.Time
}

func NewVerifier(store Store, cache Cache) *Verifier {
	return &Verifier{store: store, cache: cache, now: time.Now}
}

// Verify looks up rawKey by its prefix, confirms the presented key
// hashes to the stored secret using a constant-time comparison, and
// rejects revoked keys. A successful verification asynchronously marks
// the key used; callers get the Key back immediately without waiting
// on that write.
func (v *Verifier) Verify(ctx context.Context, rawKey string) (Key, error) {
	prefix := prefixOf(rawKey)

	k, ok := v.cache.Get(ctx, prefix)
	if !ok {
		stored, err := v.store.GetByPrefix(ctx, prefix)
		if err != nil {
			return Key{}, apperrors.Authentication("invalid api key")
		}
		k = stored
		v.cache.Set(ctx, k)
	}

	if subtle.ConstantTimeCompare([]byte(hashOf(rawKey)), []byte(k.SecretHash)) != 1 {
		return Key{}, apperrors.Authentication("invalid api key")
	}
	if k.Revoked() {
		v.cache.Invalidate(ctx, prefix)
		return Key{}, apperrors.Authentication("api key revoked")
	}

	go func() {
		if err := v.store.MarkUsed(context.Background(), k.ID, v.now().UTC()); err != nil {
			slog.Warn("mark api key used failed", "key_id", k.ID, "error", err)
		}
	}()

	return k, nil
}

// InvalidateOnRevoke drops prefix from the cache; callers should invoke
// this immediately after Store.Revoke succeeds so other replicas
// sharing a Redis-backed cache stop honoring the key within its TTL
// rather than waiting out the TTL.
func (v *Verifier) InvalidateOnRevoke(ctx context.Context, prefix string) {
	v.cache.Invalidate(ctx, prefix)
}
