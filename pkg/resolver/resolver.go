// Package resolver folds raw pattern hits into final technology matches:
// confidence aggregation, version resolution, transitive implies and
// excludes.
package resolver

import (
	"sort"

	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/types"
)

// VersionPolicy picks the resolved version from all hits of one technology.
// Hits are passed sorted by descending confidence, original order preserved
// within equal confidence.
type VersionPolicy func(hits []types.PatternMatch) string

// HighestConfidenceVersion is the default policy: the first non-empty version
// from the highest-confidence hit wins.
func HighestConfidenceVersion(hits []types.PatternMatch) string {
	for _, h := range hits {
		if h.Version != "" {
			return h.Version
		}
	}
	return ""
}

// LongestVersion prefers the longest plausible version string (at most 10
// characters), the behavior of the original browser-extension tool family.
func LongestVersion(hits []types.PatternMatch) string {
	version := ""
	for _, h := range hits {
		if len(version) < len(h.Version) && len(h.Version) <= 10 {
			version = h.Version
		}
	}
	return version
}

// Resolver aggregates hits against the catalog that produced them.
type Resolver struct {
	catalog *catalog.Catalog
	policy  VersionPolicy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVersionPolicy overrides the version conflict policy.
func WithVersionPolicy(policy VersionPolicy) Option {
	return func(r *Resolver) {
		r.policy = policy
	}
}

// New creates a Resolver for a catalog.
func New(c *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: c,
		policy:  HighestConfidenceVersion,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve turns raw hits into the final match set. Deterministic for
// identical input: results are sorted by technology name.
//
// Confidence for a technology is the sum of its hit confidences capped at
// 100. Implied technologies are added transitively (cycle-safe) and enter at
// the confidence carried by the implies edge, 100 by default. Exclusions are
// applied after implication expansion, earlier-matched technologies winning
// over the ones they exclude.
func (r *Resolver) Resolve(hits []types.PatternMatch) []types.TechMatch {
	grouped := make(map[string][]types.PatternMatch)
	var order []string
	for _, hit := range hits {
		if _, ok := r.catalog.Technology(hit.Technology); !ok {
			continue
		}
		if _, seen := grouped[hit.Technology]; !seen {
			order = append(order, hit.Technology)
		}
		grouped[hit.Technology] = append(grouped[hit.Technology], hit)
	}

	matches := make(map[string]*types.TechMatch)
	for _, name := range order {
		group := grouped[name]

		confidence := 0
		for _, hit := range group {
			confidence += hit.Confidence
		}
		if confidence > 100 {
			confidence = 100
		}

		sorted := make([]types.PatternMatch, len(group))
		copy(sorted, group)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Confidence > sorted[j].Confidence
		})

		matches[name] = &types.TechMatch{
			Name:       name,
			Confidence: confidence,
			Version:    r.policy(sorted),
			Surfaces:   surfacesOf(group),
		}
	}

	r.expandImplies(matches, &order)
	r.applyExcludes(matches, order)

	out := make([]types.TechMatch, 0, len(matches))
	for _, m := range matches {
		r.fillMetadata(m)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// expandImplies walks the implies edges of every matched technology,
// transitively, adding implied technologies that are not already present.
// The visited set makes circular implication chains terminate.
func (r *Resolver) expandImplies(matches map[string]*types.TechMatch, order *[]string) {
	visited := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		tech, ok := r.catalog.Technology(name)
		if !ok {
			return
		}

		for _, imp := range tech.Implies {
			if _, ok := r.catalog.Technology(imp.Name); !ok {
				continue
			}
			if _, present := matches[imp.Name]; !present {
				matches[imp.Name] = &types.TechMatch{
					Name:       imp.Name,
					Confidence: imp.Confidence,
					Implied:    true,
				}
				*order = append(*order, imp.Name)
			}
			visit(imp.Name)
		}
	}

	for _, name := range *order {
		visit(name)
	}
}

// applyExcludes removes technologies named in the excludes list of another
// present technology. Evaluated after implication expansion so an implied
// technology can still be excluded; technologies are processed in match
// order, so of two mutually exclusive matches the earlier one survives.
func (r *Resolver) applyExcludes(matches map[string]*types.TechMatch, order []string) {
	for _, name := range order {
		if _, present := matches[name]; !present {
			continue // already excluded by an earlier technology
		}
		tech, ok := r.catalog.Technology(name)
		if !ok {
			continue
		}
		for _, excluded := range tech.Excludes {
			delete(matches, excluded)
		}
	}
}

func (r *Resolver) fillMetadata(m *types.TechMatch) {
	tech, ok := r.catalog.Technology(m.Name)
	if !ok {
		return
	}
	m.Categories = tech.Categories
	m.Website = tech.Website
	m.Icon = tech.Icon
	m.CPE = tech.CPE
	m.Description = tech.Description
}

func surfacesOf(hits []types.PatternMatch) []types.Surface {
	seen := make(map[types.Surface]bool)
	var out []types.Surface
	for _, hit := range hits {
		if !seen[hit.Surface] {
			seen[hit.Surface] = true
			out = append(out, hit.Surface)
		}
	}
	return out
}
