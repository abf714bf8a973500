package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// patternTimeout bounds a single regex evaluation. Rulesets are third-party
// data and may contain patterns with catastrophic backtracking.
const patternTimeout = 3 * time.Second

// Pattern is one compiled signature. A raw signature string is split on the
// "\;" separator: the first segment is the regex source, the remaining
// segments are key:value metadata pairs ("confidence:50", "version:\1").
type Pattern struct {
	// Source is the regex source after metadata has been stripped.
	Source string

	// Key names the element the pattern applies to for keyed surfaces
	// (a header, cookie or meta name, stored lowercase). Empty for
	// html/script/url patterns.
	Key string

	// Confidence carried by a match of this pattern, 0-100. Defaults to 100.
	Confidence int

	// Version is the version template ("\1", "\1?a:b", ...), empty if the
	// pattern extracts no version.
	Version string

	regex *regexp2.Regexp
}

// ternaryRe matches one ternary version expression "\N?valueA:valueB". The
// true branch must be non-empty; a bare "\N?:b" is not a ternary.
var ternaryRe = regexp.MustCompile(`\\(\d+)\?([^:]+):(.*)$`)

// ParsePattern parses and compiles a raw signature string. The regex is
// compiled case-insensitively (JS-flavored rulesets assume it); patterns can
// opt back into case sensitivity with an inline (?-i) group. Compilation is
// attempted in RE2 mode first and falls back to full Perl-compatible mode for
// patterns using lookarounds or other non-RE2 features.
func ParsePattern(raw, key string) (*Pattern, error) {
	parts := strings.Split(raw, `\;`)

	p := &Pattern{
		Source:     parts[0],
		Key:        strings.ToLower(key),
		Confidence: 100,
	}

	for _, part := range parts[1:] {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch k {
		case "confidence":
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			p.Confidence = clampConfidence(n)
		case "version":
			p.Version = v
		}
	}

	// "[^]" is valid in JS regexes (any character) but not elsewhere.
	source := strings.ReplaceAll(p.Source, "[^]", ".")

	re, err := regexp2.Compile(source, regexp2.RE2|regexp2.IgnoreCase)
	if err != nil {
		re, err = regexp2.Compile(source, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", raw, err)
		}
	}
	re.MatchTimeout = patternTimeout
	p.regex = re

	return p, nil
}

// Match applies the pattern to value. On a hit it returns the resolved
// version (possibly empty) and true. A non-nil error reports a regex timeout
// or evaluation failure; callers treat it as a no-match.
func (p *Pattern) Match(value string) (string, bool, error) {
	m, err := p.regex.FindStringMatch(value)
	if err != nil {
		return "", false, fmt.Errorf("evaluating pattern %q: %w", p.Source, err)
	}
	if m == nil {
		return "", false, nil
	}
	return p.resolveVersion(m), true, nil
}

// resolveVersion instantiates the version template from the capture groups of
// a match. Backreference \0 is the whole match. A ternary "\1?a:b" resolves
// to a when group 1 captured and b otherwise. Unresolved backreferences
// become empty strings; a fully-empty result means no version.
func (p *Pattern) resolveVersion(m *regexp2.Match) string {
	if p.Version == "" {
		return ""
	}

	resolved := p.Version
	for i, g := range m.Groups() {
		captured := ""
		if len(g.Captures) > 0 {
			captured = g.Captures[0].String()
		}

		if t := ternaryRe.FindStringSubmatch(resolved); t != nil && t[1] == strconv.Itoa(i) {
			if captured != "" {
				resolved = strings.Replace(resolved, t[0], t[2], 1)
			} else {
				resolved = strings.Replace(resolved, t[0], t[3], 1)
			}
		}

		resolved = strings.ReplaceAll(resolved, `\`+strconv.Itoa(i), captured)
	}

	return strings.TrimSpace(resolved)
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
