package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePattern_Defaults(t *testing.T) {
	p, err := ParsePattern(`nginx`, "")
	require.NoError(t, err)

	assert.Equal(t, "nginx", p.Source)
	assert.Equal(t, "", p.Key)
	assert.Equal(t, 100, p.Confidence)
	assert.Equal(t, "", p.Version)
}

func TestParsePattern_Metadata(t *testing.T) {
	p, err := ParsePattern(`nginx(?:/([\d.]+))?\;version:\1\;confidence:50`, "Server")
	require.NoError(t, err)

	assert.Equal(t, `nginx(?:/([\d.]+))?`, p.Source)
	assert.Equal(t, "server", p.Key, "keys are stored lowercase")
	assert.Equal(t, 50, p.Confidence)
	assert.Equal(t, `\1`, p.Version)
}

func TestParsePattern_ConfidenceClamped(t *testing.T) {
	p, err := ParsePattern(`foo\;confidence:150`, "")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Confidence)

	p, err = ParsePattern(`foo\;confidence:-5`, "")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Confidence)

	// Non-numeric confidence keeps the default.
	p, err = ParsePattern(`foo\;confidence:maybe`, "")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Confidence)
}

func TestParsePattern_Invalid(t *testing.T) {
	_, err := ParsePattern(`(`, "")
	assert.Error(t, err)
}

func TestParsePattern_LookaheadFallback(t *testing.T) {
	// Lookarounds are rejected by RE2 mode and need the Perl fallback.
	p, err := ParsePattern(`foo(?!bar)`, "")
	require.NoError(t, err)

	_, ok, err := p.Match("foobaz")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = p.Match("foobar")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPattern_Match(t *testing.T) {
	p, err := ParsePattern(`nginx(?:/([\d.]+))?\;version:\1`, "server")
	require.NoError(t, err)

	version, ok, err := p.Match("nginx/1.18.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.18.0", version)

	// Matching is case-insensitive.
	version, ok, err = p.Match("NGINX/1.18.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.18.0", version)

	// Hit without the optional version group resolves to an empty version.
	version, ok, err = p.Match("nginx")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", version)

	_, ok, err = p.Match("apache/2.4.52")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPattern_MatchEmptySource(t *testing.T) {
	// Presence-only signatures have an empty regex that matches any value.
	p, err := ParsePattern(``, "phpsessid")
	require.NoError(t, err)

	_, ok, err := p.Match("0123456789abcdef")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = p.Match("")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPattern_TernaryVersion(t *testing.T) {
	p, err := ParsePattern(`/skin/frontend/(?:default|(enterprise))/\;version:\1?Enterprise:Community`, "")
	require.NoError(t, err)

	version, ok, err := p.Match("/skin/frontend/enterprise/default/css/styles.css")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Enterprise", version)

	version, ok, err = p.Match("/skin/frontend/default/css/styles.css")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Community", version)
}

func TestPattern_TernaryEmptyBranches(t *testing.T) {
	// Empty false branch: no version when the group did not capture.
	p, err := ParsePattern(`portal(-pro)?/\;version:\1?Pro:`, "")
	require.NoError(t, err)

	version, ok, err := p.Match("portal-pro/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pro", version)

	version, ok, err = p.Match("portal/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", version)

	// The true branch must be non-empty for the template to be a ternary;
	// "\1?:x" is plain backreference substitution instead.
	assert.False(t, ternaryRe.MatchString(`\1?:Community`))
	assert.True(t, ternaryRe.MatchString(`\1?Enterprise:Community`))
	assert.True(t, ternaryRe.MatchString(`\1?Enterprise:`))
}

func TestPattern_JSAnyCharClass(t *testing.T) {
	// "[^]" means "any character" in JS regexes and must not break compilation.
	p, err := ParsePattern(`data-react[^]checksum`, "")
	require.NoError(t, err)

	_, ok, err := p.Match("data-react-checksum")
	require.NoError(t, err)
	assert.True(t, ok)
}
