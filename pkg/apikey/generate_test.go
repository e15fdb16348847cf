package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ProducesExpectedShape(t *testing.T) {
	raw, k, err := Generate("acme", "ci key", []string{"events:write"}, EnvironmentProduction, true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "al_live_"))
	assert.Len(t, raw, len("al_live_")+randomCharCount)
	assert.Equal(t, raw[:prefixVisibleChars], k.Prefix)
	assert.Equal(t, hashOf(raw), k.SecretHash)
	assert.NotEmpty(t, k.ID)
	assert.Equal(t, "acme", k.TenantID)
}

func TestGenerate_TestTagWhenNotLive(t *testing.T) {
	raw, _, err := Generate("acme", "dev key", nil, EnvironmentTest, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "al_test_"))
}

func TestGenerate_RawKeyNeverRepeats(t *testing.T) {
	raw1, _, err := Generate("acme", "a", nil, EnvironmentTest, false)
	require.NoError(t, err)
	raw2, _, err := Generate("acme", "b", nil, EnvironmentTest, false)
	require.NoError(t, err)
	assert.NotEqual(t, raw1, raw2)
}

func TestPrefixOf_ShorterThanPrefixLengthReturnsWholeString(t *testing.T) {
	assert.Equal(t, "short", prefixOf("short"))
}

func TestKey_HasScope(t *testing.T) {
	k := Key{Scopes: []string{"events:write"}}
	assert.True(t, k.HasScope("events:write"))
	assert.False(t, k.HasScope("events:read"))

	wildcard := Key{Scopes: []string{"*"}}
	assert.True(t, wildcard.HasScope("anything"))
}
