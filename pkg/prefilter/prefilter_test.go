package prefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackarrowsec/wap/pkg/catalog"
)

func TestLiteralOf(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{`wordpress`, "wordpress"},
		{`WordPress`, "wordpress"},
		{`wp-content`, "wp-content"},
		{`three\.js`, "three.js"},
		{`jquery[.-]([\d.]+)\.js`, "jquery"},
		{`\d+release`, "release"},
		{`<link rel="stylesheet"`, `<link rel="stylesheet"`},

		// Optional or repeated characters cannot contribute.
		{`colou?r-scheme`, "r-scheme"},
		{`generators*`, "generator"},
		{`build{2,3}ing`, "buil"},

		// Quantified groups are discarded entirely, the rest survives.
		{`(?:v([\d.]+))?powered-by`, "powered-by"},

		// Alternation inside a group poisons the group only.
		{`(foo|barbaz)-toolkit`, "-toolkit"},

		// Top-level alternation means no single guaranteed literal.
		{`wordpress|drupal`, ""},
		{`foo|barbazqux`, ""},

		// Lookaround bodies are assertions, never guaranteed content; a
		// negative lookahead's body is guaranteed ABSENT and must not
		// become the keyword.
		{`login(?!wordpress)`, "login"},
		{`(?!wordpress)admin-panel`, "admin-panel"},
		{`(?<=generator)`, ""},
		{`(?<!microsoft)azure-cdn`, "azure-cdn"},
		{`pass(?=word[0-9]{2})`, "pass"},

		// Named captures are consumed content and still contribute.
		{`(?<ver>release)`, "release"},

		// Character classes contribute nothing.
		{`[wordpress]+`, ""},

		// Too short to be worth an index entry.
		{`abc`, ""},
		{``, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, LiteralOf(tc.source), "source: %s", tc.source)
	}
}

func mustPattern(t *testing.T, raw string) *catalog.Pattern {
	t.Helper()
	p, err := catalog.ParsePattern(raw, "")
	require.NoError(t, err)
	return p
}

func TestPrefilter_Candidates(t *testing.T) {
	wordpress := mustPattern(t, `wp-content/themes`)
	jquery := mustPattern(t, `jquery[.-]([\d.]+)\.js`)
	anything := mustPattern(t, `foo|barbaz`) // no derivable keyword

	pf := New([]*catalog.Pattern{wordpress, jquery, anything})

	body := []byte(`<html><link href="/WP-Content/themes/x/style.css"></html>`)
	candidates := pf.Candidates(body)

	assert.Contains(t, candidates, wordpress, "keyword occurs (case-insensitively)")
	assert.NotContains(t, candidates, jquery, "keyword absent")
	assert.Contains(t, candidates, anything, "keywordless patterns always run")
}

func TestPrefilter_NeverDropsLookaroundMatches(t *testing.T) {
	// A negative lookahead's body must not gate the pattern: this regex
	// matches bodies that do NOT contain "wordpress" after "login".
	p := mustPattern(t, `login(?!wordpress)`)

	body := []byte("please login here")
	_, matched, err := p.Match(string(body))
	require.NoError(t, err)
	require.True(t, matched)

	pf := New([]*catalog.Pattern{p})
	assert.Contains(t, pf.Candidates(body), p)
}

func TestPrefilter_Empty(t *testing.T) {
	pf := New(nil)
	assert.Empty(t, pf.Candidates([]byte("anything")))
}

func TestPrefilter_SharedLiteral(t *testing.T) {
	a := mustPattern(t, `wp-content/plugins`)
	b := mustPattern(t, `wp-content/uploads`)

	pf := New([]*catalog.Pattern{a, b})
	candidates := pf.Candidates([]byte(`src="/wp-content/uploads/x.png"`))

	// Both share the "wp-content/" derived keyword family; at minimum the
	// matching one must be present and the prefilter must never drop a
	// pattern whose full regex would match.
	assert.Contains(t, candidates, b)
}
