package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig narrows a catalog before matching. Include and Exclude hold
// regex patterns applied to technology names; Categories keeps only
// technologies referencing at least one of the given category ids.
type FilterConfig struct {
	Include    []string
	Exclude    []string
	Categories []int
}

// ParsePatterns splits a comma-separated flag value into trimmed patterns.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter returns a new catalog containing only the technologies admitted by
// the config. Include is applied first, then exclude, then categories; an
// empty include means "include all". The category table is carried over
// unchanged so implies edges into filtered-out technologies stay resolvable
// by name without reviving their patterns.
func Filter(c *Catalog, config FilterConfig) (*Catalog, error) {
	includeRes, err := compileFilters(config.Include)
	if err != nil {
		return nil, err
	}
	excludeRes, err := compileFilters(config.Exclude)
	if err != nil {
		return nil, err
	}

	wantCats := make(map[int]bool, len(config.Categories))
	for _, id := range config.Categories {
		wantCats[id] = true
	}

	techs := make(map[string]*Technology)
	for _, tech := range c.Technologies() {
		if len(includeRes) > 0 && !matchesAny(tech.Name, includeRes) {
			continue
		}
		if matchesAny(tech.Name, excludeRes) {
			continue
		}
		if len(wantCats) > 0 && !hasCategory(tech, wantCats) {
			continue
		}
		techs[tech.Name] = tech
	}

	return newCatalog(techs, c.categories), nil
}

func compileFilters(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(name string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func hasCategory(tech *Technology, want map[int]bool) bool {
	for _, cat := range tech.Categories {
		if want[cat.ID] {
			return true
		}
	}
	return false
}
