// Package wap identifies web technologies (frameworks, CMSs, libraries,
// servers) used by a website by matching a ruleset of signatures against an
// already-fetched HTTP response: headers, cookies, HTML body, script URLs,
// meta tags and the final URL.
//
// # Basic Usage
//
// Create a scanner with the builtin ruleset and fingerprint a response:
//
//	scanner, err := wap.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matches := scanner.Fingerprint(&wap.Response{
//	    URL:     "https://example.org/",
//	    Headers: http.Header{"Server": []string{"nginx/1.18.0"}},
//	})
//
//	for _, m := range matches {
//	    fmt.Printf("%s %s (%d%%)\n", m.Name, m.Version, m.Confidence)
//	}
//
// # Custom Rulesets
//
// Load a technologies.json (or YAML equivalent) and use it instead of the
// builtin catalog:
//
//	c, err := catalog.NewLoader().LoadFile("technologies.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scanner, err := wap.NewScanner(wap.WithCatalog(c))
//
// The scanner is immutable after construction and safe for concurrent
// Fingerprint calls; parallelize at the response-fetching layer and share one
// scanner.
package wap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/matcher"
	"github.com/blackarrowsec/wap/pkg/resolver"
	"github.com/blackarrowsec/wap/pkg/types"
)

// Re-export commonly used types so callers can import just
// "github.com/blackarrowsec/wap" without subpackages.
type (
	// Response is the already-fetched HTTP response to fingerprint.
	Response = types.Response

	// TechMatch is a final detection result for one technology.
	TechMatch = types.TechMatch

	// PatternMatch is a single raw pattern hit.
	PatternMatch = types.PatternMatch

	// Category classifies technologies in groups.
	Category = types.Category
)

// Scanner fingerprints responses against a loaded technology catalog.
type Scanner struct {
	catalog  *catalog.Catalog
	engine   *matcher.Engine
	resolver *resolver.Resolver
	config   *scannerConfig
}

type scannerConfig struct {
	catalog       *catalog.Catalog
	rulesetData   []byte
	logger        logrus.FieldLogger
	prefilter     bool
	versionPolicy resolver.VersionPolicy
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithCatalog uses an already-loaded catalog instead of the builtin ruleset.
func WithCatalog(c *catalog.Catalog) Option {
	return func(cfg *scannerConfig) {
		cfg.catalog = c
	}
}

// WithRuleset loads the catalog from a raw ruleset document (JSON or YAML).
func WithRuleset(data []byte) Option {
	return func(cfg *scannerConfig) {
		cfg.rulesetData = data
	}
}

// WithLogger routes load and match warnings to the given logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *scannerConfig) {
		cfg.logger = logger
	}
}

// WithoutPrefilter disables the Aho-Corasick body prefilter. Mostly useful
// for debugging pattern behavior; the prefilter never changes results, only
// skips regexes that cannot match.
func WithoutPrefilter() Option {
	return func(cfg *scannerConfig) {
		cfg.prefilter = false
	}
}

// WithVersionPolicy overrides how conflicting versions from multiple hits of
// one technology are resolved. Default: resolver.HighestConfidenceVersion.
func WithVersionPolicy(policy resolver.VersionPolicy) Option {
	return func(cfg *scannerConfig) {
		cfg.versionPolicy = policy
	}
}

// NewScanner creates a Scanner. Without options it loads the builtin
// ruleset, enables the prefilter and logs warnings through the standard
// logger.
func NewScanner(opts ...Option) (*Scanner, error) {
	cfg := &scannerConfig{
		logger:        logrus.StandardLogger(),
		prefilter:     true,
		versionPolicy: resolver.HighestConfidenceVersion,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := cfg.catalog
	if c == nil {
		loader := catalog.NewLoaderWithLogger(cfg.logger)
		var err error
		if cfg.rulesetData != nil {
			c, err = loader.Load(cfg.rulesetData)
		} else {
			c, err = loader.LoadBuiltin()
		}
		if err != nil {
			return nil, fmt.Errorf("loading ruleset: %w", err)
		}
	}

	engineOpts := []matcher.Option{matcher.WithLogger(cfg.logger)}
	if cfg.prefilter {
		engineOpts = append(engineOpts, matcher.WithPrefilter())
	}

	return &Scanner{
		catalog:  c,
		engine:   matcher.New(c, engineOpts...),
		resolver: resolver.New(c, resolver.WithVersionPolicy(cfg.versionPolicy)),
		config:   cfg,
	}, nil
}

// Fingerprint runs discovery and resolution against one response and returns
// the final technology matches, sorted by name.
func (s *Scanner) Fingerprint(resp *Response) []TechMatch {
	return s.resolver.Resolve(s.engine.Discover(resp))
}

// Discover returns the raw pattern hits for a response without resolution.
// Useful for diagnostics and for callers with their own aggregation.
func (s *Scanner) Discover(resp *Response) []PatternMatch {
	return s.engine.Discover(resp)
}

// Catalog returns the loaded catalog.
func (s *Scanner) Catalog() *catalog.Catalog {
	return s.catalog
}

// TechnologyCount returns the number of technologies loaded.
func (s *Scanner) TechnologyCount() int {
	return s.catalog.Len()
}
