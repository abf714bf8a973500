package wap

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/resolver"
)

const scannerRuleset = `{
	"categories": {
		"1": {"name": "CMS", "priority": 1},
		"22": {"name": "Web servers", "priority": 8},
		"27": {"name": "Programming languages", "priority": 5}
	},
	"technologies": {
		"Nginx": {
			"cats": [22],
			"website": "https://nginx.org/en",
			"headers": {"Server": "nginx(?:/([\\d.]+))?\\;version:\\1"}
		},
		"WordPress": {
			"cats": [1],
			"meta": {"generator": "^WordPress(?: ([\\d.]+))?\\;version:\\1"},
			"implies": ["PHP"]
		},
		"PHP": {
			"cats": [27]
		}
	}
}`

func TestNewScanner_Builtin(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)

	assert.Greater(t, scanner.TechnologyCount(), 20)
	assert.NotNil(t, scanner.Catalog())
}

func TestScanner_Fingerprint(t *testing.T) {
	scanner, err := NewScanner(WithRuleset([]byte(scannerRuleset)))
	require.NoError(t, err)

	matches := scanner.Fingerprint(&Response{
		URL:     "https://example.org/",
		Headers: http.Header{"Server": []string{"nginx/1.18.0"}},
		Body:    []byte(`<html><head><meta name="generator" content="WordPress 5.9"></head></html>`),
	})

	require.Len(t, matches, 3)

	// Sorted by name.
	assert.Equal(t, "Nginx", matches[0].Name)
	assert.Equal(t, "1.18.0", matches[0].Version)
	assert.Equal(t, 100, matches[0].Confidence)
	assert.Equal(t, "https://nginx.org/en", matches[0].Website)

	assert.Equal(t, "PHP", matches[1].Name)
	assert.True(t, matches[1].Implied)

	assert.Equal(t, "WordPress", matches[2].Name)
	assert.Equal(t, "5.9", matches[2].Version)
}

func TestScanner_FingerprintEmptyResponse(t *testing.T) {
	scanner, err := NewScanner(WithRuleset([]byte(scannerRuleset)))
	require.NoError(t, err)

	assert.Empty(t, scanner.Fingerprint(&Response{}))
}

func TestScanner_Discover(t *testing.T) {
	scanner, err := NewScanner(WithRuleset([]byte(scannerRuleset)))
	require.NoError(t, err)

	hits := scanner.Discover(&Response{
		Headers: http.Header{"Server": []string{"nginx"}},
	})

	require.Len(t, hits, 1)
	assert.Equal(t, "Nginx", hits[0].Technology)
}

func TestScanner_WithCatalog(t *testing.T) {
	c, err := catalog.NewLoader().Load([]byte(scannerRuleset))
	require.NoError(t, err)

	scanner, err := NewScanner(WithCatalog(c))
	require.NoError(t, err)
	assert.Equal(t, 3, scanner.TechnologyCount())
}

func TestScanner_WithoutPrefilterSameResults(t *testing.T) {
	resp := &Response{
		Body: []byte(`<html><head><meta name="generator" content="WordPress 5.9"></head></html>`),
	}

	withPf, err := NewScanner(WithRuleset([]byte(scannerRuleset)))
	require.NoError(t, err)
	withoutPf, err := NewScanner(WithRuleset([]byte(scannerRuleset)), WithoutPrefilter())
	require.NoError(t, err)

	assert.Equal(t, withoutPf.Fingerprint(resp), withPf.Fingerprint(resp))
}

func TestScanner_WithVersionPolicy(t *testing.T) {
	scanner, err := NewScanner(
		WithRuleset([]byte(scannerRuleset)),
		WithVersionPolicy(resolver.LongestVersion),
	)
	require.NoError(t, err)

	matches := scanner.Fingerprint(&Response{
		Headers: http.Header{"Server": []string{"nginx/1.18.0"}},
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "1.18.0", matches[0].Version)
}

func TestNewScanner_BadRuleset(t *testing.T) {
	_, err := NewScanner(WithRuleset([]byte(`[not a ruleset]`)))
	assert.Error(t, err)
}
