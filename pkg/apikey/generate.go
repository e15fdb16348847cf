package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// randomCharCount is the length of the random segment of a raw key
// (spec §3: "bearer string of form al_{live|test}_<32 url-safe chars>").
const randomCharCount = 32

// prefixVisibleChars is how many leading characters of the raw key are
// kept visible and indexed after the key is minted (spec §3: "prefix
// (16 chars, visible)").
const prefixVisibleChars = 16

// Generate mints a new raw bearer key and its persisted record. live
// selects the "al_live_" tag over "al_test_". The raw key is returned
// exactly once — only its prefix and hash are kept in the returned Key.
func Generate(tenantID, name string, scopes []string, env Environment, live bool) (rawKey string, key Key, err error) {
	tag := "test"
	if live {
		tag = "live"
	}

	random, err := randomURLSafe(randomCharCount)
	if err != nil {
		return "", Key{}, fmt.Errorf("generate key material: %w", err)
	}
	rawKey = fmt.Sprintf("al_%s_%s", tag, random)

	hash := sha256.Sum256([]byte(rawKey))
	key = Key{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Prefix:      rawKey[:prefixVisibleChars],
		SecretHash:  hex.EncodeToString(hash[:]),
		Name:        name,
		Scopes:      scopes,
		Environment: env,
	}
	return rawKey, key, nil
}

// randomURLSafe returns exactly n URL-safe characters of cryptographic
// randomness. base64's raw (unpadded) URL encoding produces 4 characters
// per 3 source bytes, so n must be a multiple of 4; randomCharCount (32)
// satisfies this.
func randomURLSafe(n int) (string, error) {
	if n%4 != 0 {
		return "", fmt.Errorf("randomURLSafe: n=%d must be a multiple of 4", n)
	}
	buf := make([]byte, n/4*3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(buf)
	// RawURLEncoding can emit '-' and '_', both already URL-safe; no
	// further substitution needed. Trim defensively in case a future
	// encoder choice introduces padding.
	return strings.TrimRight(encoded, "="), nil
}

// prefixOf extracts the lookup prefix from a raw bearer key. Returns
// the whole string if it is shorter than the expected prefix length
// (always an invalid key, but never panics).
func prefixOf(rawKey string) string {
	if len(rawKey) <= prefixVisibleChars {
		return rawKey
	}
	return rawKey[:prefixVisibleChars]
}

// hashOf returns the hex-encoded SHA-256 hash of a raw bearer key.
func hashOf(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
