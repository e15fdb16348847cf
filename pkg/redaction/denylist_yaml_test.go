package redaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDenyListYAML(t *testing.T) {
	src := `
rules:
  - substring: classified-project-falcon
  - pattern: 'acct-\d{6}'
`
	rules, err := LoadDenyListYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "classified-project-falcon", rules[0].Substring)
	assert.Equal(t, `acct-\d{6}`, rules[1].Pattern)
}

func TestPipeline_DefaultDenyRulesApplyAlongsideContextRules(t *testing.T) {
	p := NewWithConfig(NewInMemoryReviewQueue(), LayerToggles{
		DenyList:         true,
		HumanReview:      true,
		DefaultDenyRules: []DenyRule{{Substring: "classified-project-falcon"}},
	})

	result, err := p.Process(NewRaw("status update on classified-project-falcon"), Context{})
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, result.Status)
}
