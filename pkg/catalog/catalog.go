// Package catalog loads technology rulesets into an immutable, compiled
// catalog of signatures. A catalog is built once, is read-only afterwards and
// may be shared freely across concurrent discovery calls.
package catalog

import (
	"sort"

	"github.com/blackarrowsec/wap/pkg/types"
)

// Implied is one entry of a technology's implies list. The confidence
// defaults to 100 and can be lowered with a "\;confidence:N" suffix on the
// entry.
type Implied struct {
	Name       string
	Confidence int
}

// Technology is the compiled signature set for one technology: its metadata
// plus the patterns to try per response surface. Keyed surfaces (headers,
// cookies, meta) carry the field name in each Pattern's Key.
type Technology struct {
	Name        string
	Categories  []types.Category
	Website     string
	Icon        string
	CPE         string
	Description string

	Headers []*Pattern
	Cookies []*Pattern
	Meta    []*Pattern
	HTML    []*Pattern
	Script  []*Pattern
	URL     []*Pattern

	Implies  []Implied
	Excludes []string
}

// Catalog maps technology names to their compiled signature sets. Implied and
// excluded technologies are stored as name-keyed edges and resolved against
// the catalog at discovery time.
type Catalog struct {
	techs      map[string]*Technology
	names      []string // sorted, fixes iteration order
	categories map[int]types.Category
}

// Technologies returns all signature sets ordered by technology name.
func (c *Catalog) Technologies() []*Technology {
	out := make([]*Technology, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.techs[name])
	}
	return out
}

// Technology looks up one signature set by name.
func (c *Catalog) Technology(name string) (*Technology, bool) {
	t, ok := c.techs[name]
	return t, ok
}

// Categories returns the catalog's categories ordered by id.
func (c *Catalog) Categories() []types.Category {
	out := make([]types.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Category looks up a category by id.
func (c *Catalog) Category(id int) (types.Category, bool) {
	cat, ok := c.categories[id]
	return cat, ok
}

// Len returns the number of technologies in the catalog.
func (c *Catalog) Len() int {
	return len(c.names)
}

func newCatalog(techs map[string]*Technology, categories map[int]types.Category) *Catalog {
	names := make([]string, 0, len(techs))
	for name := range techs {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Catalog{
		techs:      techs,
		names:      names,
		categories: categories,
	}
}
