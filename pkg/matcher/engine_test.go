package matcher

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/types"
)

const engineRuleset = `{
	"categories": {
		"1": {"name": "CMS", "priority": 1},
		"22": {"name": "Web servers", "priority": 8},
		"59": {"name": "JavaScript libraries", "priority": 6}
	},
	"technologies": {
		"Nginx": {
			"cats": [22],
			"headers": {"Server": "nginx(?:/([\\d.]+))?\\;version:\\1"}
		},
		"PHP": {
			"cats": [22],
			"cookies": {"PHPSESSID": ""}
		},
		"WordPress": {
			"cats": [1],
			"html": "<link rel=[\"']stylesheet[\"'] [^>]+wp-content",
			"meta": {"generator": "^WordPress(?: ([\\d.]+))?\\;version:\\1"}
		},
		"jQuery": {
			"cats": [59],
			"script": "jquery-([\\d.]+)(?:\\.min)?\\.js\\;version:\\1"
		},
		"Shopify": {
			"cats": [1],
			"url": "^https?://[^/]+\\.myshopify\\.com"
		}
	}
}`

func engineFixture(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	c, err := catalog.NewLoader().Load([]byte(engineRuleset))
	require.NoError(t, err)
	return New(c, opts...)
}

// hitFor finds the hit of one technology in a result set.
func hitFor(hits []types.PatternMatch, tech string) (types.PatternMatch, bool) {
	for _, h := range hits {
		if h.Technology == tech {
			return h, true
		}
	}
	return types.PatternMatch{}, false
}

func TestEngine_HeaderSurface(t *testing.T) {
	e := engineFixture(t)

	hits := e.Discover(&types.Response{
		// Header name casing must not matter.
		Headers: http.Header{"SERVER": []string{"nginx/1.18.0"}},
	})

	require.Len(t, hits, 1)
	assert.Equal(t, "Nginx", hits[0].Technology)
	assert.Equal(t, types.SurfaceHeaders, hits[0].Surface)
	assert.Equal(t, "server", hits[0].Key)
	assert.Equal(t, "1.18.0", hits[0].Version)
	assert.Equal(t, 100, hits[0].Confidence)
}

func TestEngine_CookieSurface(t *testing.T) {
	e := engineFixture(t)

	hits := e.Discover(&types.Response{
		Cookies: map[string]string{"PHPSESSID": "0123456789abcdef"},
	})

	hit, ok := hitFor(hits, "PHP")
	require.True(t, ok)
	assert.Equal(t, types.SurfaceCookies, hit.Surface)
	assert.Equal(t, "phpsessid", hit.Key)
}

func TestEngine_CookieAbsent(t *testing.T) {
	e := engineFixture(t)

	// The PHPSESSID pattern is presence-only (empty regex); it must not fire
	// when the cookie itself is absent.
	hits := e.Discover(&types.Response{
		Cookies: map[string]string{"sessionid": "xyz"},
	})

	_, ok := hitFor(hits, "PHP")
	assert.False(t, ok)
}

func TestEngine_HTMLAndMetaSurfaces(t *testing.T) {
	body := []byte(`<html><head>
		<meta name="generator" content="WordPress 5.9">
		<link rel="stylesheet" href="/wp-content/themes/x/style.css">
	</head></html>`)

	for _, opts := range [][]Option{nil, {WithPrefilter()}} {
		e := engineFixture(t, opts...)
		hits := e.Discover(&types.Response{Body: body})

		var surfaces []types.Surface
		for _, h := range hits {
			require.Equal(t, "WordPress", h.Technology)
			surfaces = append(surfaces, h.Surface)
		}
		assert.ElementsMatch(t, []types.Surface{types.SurfaceHTML, types.SurfaceMeta}, surfaces)

		meta, _ := hitFor(hits, "WordPress")
		for _, h := range hits {
			if h.Surface == types.SurfaceMeta {
				meta = h
			}
		}
		assert.Equal(t, "5.9", meta.Version)
	}
}

func TestEngine_ScriptSurface(t *testing.T) {
	e := engineFixture(t)

	hits := e.Discover(&types.Response{
		Body: []byte(`<html><script src="/assets/jquery-3.6.0.min.js"></script></html>`),
	})

	hit, ok := hitFor(hits, "jQuery")
	require.True(t, ok)
	assert.Equal(t, types.SurfaceScript, hit.Surface)
	assert.Equal(t, "3.6.0", hit.Version)
}

func TestEngine_URLSurface(t *testing.T) {
	e := engineFixture(t)

	hits := e.Discover(&types.Response{URL: "https://shop.myshopify.com/products"})

	hit, ok := hitFor(hits, "Shopify")
	require.True(t, ok)
	assert.Equal(t, types.SurfaceURL, hit.Surface)
}

func TestEngine_EmptyResponse(t *testing.T) {
	e := engineFixture(t)

	assert.Empty(t, e.Discover(&types.Response{}))
}

func TestEngine_MultipleHeaderValues(t *testing.T) {
	e := engineFixture(t)

	hits := e.Discover(&types.Response{
		Headers: http.Header{"Server": []string{"front", "nginx/1.20.1"}},
	})

	hit, ok := hitFor(hits, "Nginx")
	require.True(t, ok)
	assert.Equal(t, "1.20.1", hit.Version)
}

func TestEngine_Deterministic(t *testing.T) {
	e := engineFixture(t)
	resp := &types.Response{
		URL:     "https://shop.myshopify.com/",
		Headers: http.Header{"Server": []string{"nginx"}},
		Body:    []byte(`<html><script src="jquery-3.6.0.js"></script></html>`),
	}

	first := e.Discover(resp)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Discover(resp))
	}
}
