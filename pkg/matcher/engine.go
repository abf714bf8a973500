// Package matcher evaluates a technology catalog against one HTTP response
// and emits raw pattern hits. It has no cross-technology logic; aggregation,
// implies and excludes belong to the resolver.
package matcher

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/prefilter"
	"github.com/blackarrowsec/wap/pkg/types"
)

// Engine matches a loaded catalog against responses. An Engine is immutable
// after construction and safe for concurrent Discover calls.
type Engine struct {
	catalog *catalog.Catalog
	pf      *prefilter.Prefilter
	logger  logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrefilter enables the Aho-Corasick body prefilter for html patterns.
// With catalogs of hundreds of technologies this avoids running most body
// regexes on every response.
func WithPrefilter() Option {
	return func(e *Engine) {
		var htmlPatterns []*catalog.Pattern
		for _, tech := range e.catalog.Technologies() {
			htmlPatterns = append(htmlPatterns, tech.HTML...)
		}
		e.pf = prefilter.New(htmlPatterns)
	}
}

// WithLogger routes the engine's warnings to the given logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine over a loaded catalog.
func New(c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover evaluates every technology in the catalog against the response
// and returns the raw hits. All patterns of a technology are evaluated, not
// short-circuited, so multiple hits can accumulate confidence downstream.
// The result order is deterministic (catalog order, surfaces in a fixed
// sequence).
func (e *Engine) Discover(resp *types.Response) []types.PatternMatch {
	body := string(resp.Body)

	page, err := ParsePage(resp.Body)
	if err != nil {
		e.logger.WithError(err).Warn("body extraction failed, matching html surface only")
	}

	headers := lowerHeaders(resp.Headers)
	cookies := lowerKeys(resp.Cookies)

	var htmlCandidates map[*catalog.Pattern]struct{}
	if e.pf != nil {
		htmlCandidates = e.pf.Candidates(resp.Body)
	}

	var hits []types.PatternMatch
	for _, tech := range e.catalog.Technologies() {
		if resp.URL != "" {
			for _, p := range tech.URL {
				e.tryPattern(&hits, tech.Name, types.SurfaceURL, p, resp.URL)
			}
		}

		for _, p := range tech.Headers {
			for _, value := range headers[p.Key] {
				e.tryPattern(&hits, tech.Name, types.SurfaceHeaders, p, value)
			}
		}

		for _, p := range tech.Cookies {
			if value, ok := cookies[p.Key]; ok {
				e.tryPattern(&hits, tech.Name, types.SurfaceCookies, p, value)
			}
		}

		if len(resp.Body) > 0 {
			for _, p := range tech.HTML {
				if htmlCandidates != nil {
					if _, ok := htmlCandidates[p]; !ok {
						continue
					}
				}
				e.tryPattern(&hits, tech.Name, types.SurfaceHTML, p, body)
			}
		}

		for _, p := range tech.Script {
			for _, src := range page.Scripts {
				e.tryPattern(&hits, tech.Name, types.SurfaceScript, p, src)
			}
		}

		for _, p := range tech.Meta {
			for _, content := range page.Metas[p.Key] {
				e.tryPattern(&hits, tech.Name, types.SurfaceMeta, p, content)
			}
		}
	}

	return hits
}

func (e *Engine) tryPattern(hits *[]types.PatternMatch, tech string, surface types.Surface, p *catalog.Pattern, value string) {
	version, ok, err := p.Match(value)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"technology": tech,
			"surface":    surface,
		}).WithError(err).Warn("pattern evaluation failed, skipping")
		return
	}
	if !ok {
		return
	}

	*hits = append(*hits, types.PatternMatch{
		Technology: tech,
		Surface:    surface,
		Key:        p.Key,
		Pattern:    p.Source,
		Confidence: p.Confidence,
		Version:    version,
	})
}

func lowerHeaders(headers map[string][]string) map[string][]string {
	out := make(map[string][]string, len(headers))
	for name, values := range headers {
		out[strings.ToLower(name)] = append(out[strings.ToLower(name)], values...)
	}
	return out
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for name, value := range m {
		out[strings.ToLower(name)] = value
	}
	return out
}
