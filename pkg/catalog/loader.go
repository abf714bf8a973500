package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/blackarrowsec/wap/pkg/types"
)

// ErrMalformedRuleset reports a ruleset document whose top-level structure
// does not match the expected mapping-of-technology-to-rules shape. This is
// the only fatal load error; per-entry data-quality problems (bad regexes,
// unknown category references) are dropped with a warning instead, since
// rulesets are third-party data.
var ErrMalformedRuleset = errors.New("malformed ruleset document")

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader parses ruleset documents into catalogs.
type Loader struct {
	logger logrus.FieldLogger
}

// NewLoader creates a loader that reports dropped entries through the
// standard logger.
func NewLoader() *Loader {
	return &Loader{logger: logrus.StandardLogger()}
}

// NewLoaderWithLogger creates a loader reporting through the given logger.
func NewLoaderWithLogger(logger logrus.FieldLogger) *Loader {
	return &Loader{logger: logger}
}

// Load parses a ruleset document. JSON and YAML documents are accepted; the
// format is sniffed from the first non-space byte.
func (l *Loader) Load(data []byte) (*Catalog, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	asYAML := len(trimmed) == 0 || trimmed[0] != '{'
	return l.load(data, asYAML)
}

// LoadFile parses a ruleset document from a file path.
func (l *Loader) LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return l.load(data, true)
	default:
		return l.Load(data)
	}
}

func (l *Loader) load(data []byte, asYAML bool) (*Catalog, error) {
	var doc rulesetDoc

	if asYAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRuleset, err)
		}
	} else {
		if err := jsonAPI.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRuleset, err)
		}
	}

	if doc.Technologies == nil {
		return nil, fmt.Errorf("%w: missing top-level technologies mapping", ErrMalformedRuleset)
	}

	return l.build(doc), nil
}

// LoadBuiltin parses the embedded builtin ruleset.
func (l *Loader) LoadBuiltin() (*Catalog, error) {
	return l.Load(builtinRuleset)
}

func (l *Loader) build(doc rulesetDoc) *Catalog {
	categories := make(map[int]types.Category, len(doc.Categories))
	for rawID, cat := range doc.Categories {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			l.logger.WithField("category", rawID).Warn("dropping category with non-numeric id")
			continue
		}
		categories[id] = types.Category{ID: id, Name: cat.Name, Priority: cat.Priority}
	}

	techs := make(map[string]*Technology, len(doc.Technologies))
	for name, entry := range doc.Technologies {
		techs[name] = l.buildTechnology(name, entry, categories)
	}

	return newCatalog(techs, categories)
}

func (l *Loader) buildTechnology(name string, entry technologyDoc, categories map[int]types.Category) *Technology {
	t := &Technology{
		Name:        name,
		Website:     entry.Website,
		Icon:        entry.Icon,
		CPE:         entry.CPE,
		Description: entry.Description,
		Excludes:    entry.Excludes,
	}

	for _, id := range entry.Cats {
		cat, ok := categories[id]
		if !ok {
			l.logger.WithFields(logrus.Fields{
				"technology": name,
				"category":   id,
			}).Warn("dropping unknown category reference")
			continue
		}
		t.Categories = append(t.Categories, cat)
	}

	t.Headers = l.compileKeyed(name, entry.Headers)
	t.Cookies = l.compileKeyed(name, entry.Cookies)
	t.Meta = l.compileKeyed(name, entry.Meta)
	t.HTML = l.compileList(name, entry.HTML, "")
	t.Script = l.compileList(name, entry.scriptPatterns(), "")
	t.URL = l.compileList(name, entry.URL, "")

	for _, raw := range entry.Implies {
		t.Implies = append(t.Implies, parseImplied(raw))
	}

	return t
}

// compileKeyed compiles header/cookie/meta pattern maps into a flat list with
// the (lowercased) field name carried in each pattern's Key. Map keys are
// sorted so the resulting order is deterministic.
func (l *Loader) compileKeyed(tech string, raw map[string]stringList) []*Pattern {
	if len(raw) == 0 {
		return nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*Pattern
	for _, key := range keys {
		out = append(out, l.compileList(tech, raw[key], key)...)
	}
	return out
}

func (l *Loader) compileList(tech string, raws stringList, key string) []*Pattern {
	if len(raws) == 0 {
		return nil
	}

	out := make([]*Pattern, 0, len(raws))
	for _, raw := range raws {
		p, err := ParsePattern(raw, key)
		if err != nil {
			l.logger.WithFields(logrus.Fields{
				"technology": tech,
				"pattern":    raw,
			}).WithError(err).Warn("dropping invalid pattern")
			continue
		}
		out = append(out, p)
	}
	return out
}

// parseImplied parses one implies entry. Entries use the same "\;" metadata
// convention as patterns, so "PHP\;confidence:50" implies PHP at confidence
// 50. Without a suffix the implied confidence is 100.
func parseImplied(raw string) Implied {
	parts := strings.Split(raw, `\;`)
	imp := Implied{Name: parts[0], Confidence: 100}

	for _, part := range parts[1:] {
		k, v, ok := strings.Cut(part, ":")
		if !ok || k != "confidence" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			imp.Confidence = clampConfidence(n)
		}
	}
	return imp
}
