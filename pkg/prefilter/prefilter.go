// Package prefilter narrows the set of html-surface patterns worth running
// against a body. Pattern regexes are reduced to literal keywords and matched
// in one Aho-Corasick pass; only patterns whose keyword occurs (plus patterns
// with no derivable keyword) get the full regex evaluation.
package prefilter

import (
	"bytes"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/blackarrowsec/wap/pkg/catalog"
)

// minLiteralLen is the shortest keyword worth prefiltering on. Shorter
// literals match almost any body and would only add overhead.
const minLiteralLen = 4

// Prefilter indexes patterns by a literal keyword derived from each regex.
type Prefilter struct {
	matcher   *ahocorasick.Matcher
	literals  []string
	byLiteral map[string][]*catalog.Pattern
	always    []*catalog.Pattern // no derivable keyword, evaluated every time
}

// New builds a prefilter over the given patterns.
func New(patterns []*catalog.Pattern) *Prefilter {
	pf := &Prefilter{
		byLiteral: make(map[string][]*catalog.Pattern),
	}

	seen := make(map[string]bool)
	for _, p := range patterns {
		lit := LiteralOf(p.Source)
		if lit == "" {
			pf.always = append(pf.always, p)
			continue
		}
		if !seen[lit] {
			seen[lit] = true
			pf.literals = append(pf.literals, lit)
		}
		pf.byLiteral[lit] = append(pf.byLiteral[lit], p)
	}

	if len(pf.literals) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.literals)
	}

	return pf
}

// Candidates returns the patterns that might match content: those whose
// keyword occurs in it plus those with no keyword. Matching is done on the
// lowercased body since pattern regexes are case-insensitive.
func (pf *Prefilter) Candidates(content []byte) map[*catalog.Pattern]struct{} {
	result := make(map[*catalog.Pattern]struct{}, len(pf.always))
	for _, p := range pf.always {
		result[p] = struct{}{}
	}

	if pf.matcher == nil {
		return result
	}

	hits := pf.matcher.Match(bytes.ToLower(content))
	for _, hit := range hits {
		for _, p := range pf.byLiteral[pf.literals[hit]] {
			result[p] = struct{}{}
		}
	}

	return result
}

// LiteralOf extracts the longest guaranteed literal run from a regex source,
// lowercased, or "" when nothing long enough can be derived. The extraction
// is conservative: a keyword is only usable if every string the regex matches
// must contain it, so runs inside optional or alternated groups are discarded
// and a top-level alternation disables prefiltering for the pattern entirely.
func LiteralOf(source string) string {
	type mark struct {
		idx      int // runs length when the group opened
		poisoned bool
	}

	var (
		runs  []string
		run   []byte
		stack []mark
	)

	flush := func() {
		if len(run) > 0 {
			runs = append(runs, string(run))
			run = nil
		}
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch c {
		case '\\':
			// Escaped metacharacters are literal; class escapes like \d
			// or \s are not.
			if i+1 < len(source) && !isClassEscape(source[i+1]) {
				run = append(run, source[i+1])
				i++
			} else {
				flush()
				i++
			}
		case '(':
			flush()
			// Lookarounds assert without consuming; their bodies are not
			// guaranteed present in a matching string (negative ones are
			// guaranteed absent), so skip them entirely.
			if end, ok := lookaroundEnd(source, i); ok {
				i = end
				break
			}
			stack = append(stack, mark{idx: len(runs)})
			// Skip non-capturing and named-group prefixes.
			if i+1 < len(source) && source[i+1] == '?' {
				i++
				if i+1 < len(source) && source[i+1] == ':' {
					i++
				} else if i+1 < len(source) && source[i+1] == '<' {
					for i < len(source) && source[i] != '>' {
						i++
					}
				}
			}
		case ')':
			flush()
			if len(stack) == 0 {
				break
			}
			m := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			quantified := i+1 < len(source) && strings.ContainsRune("?*{", rune(source[i+1]))
			if m.poisoned || quantified {
				runs = runs[:m.idx]
			}
		case '|':
			flush()
			if len(stack) == 0 {
				// Top-level alternation: no single literal is guaranteed.
				return ""
			}
			stack[len(stack)-1].poisoned = true
		case '?', '*', '{':
			// Quantifier makes the preceding char optional or repeated.
			if len(run) > 0 {
				run = run[:len(run)-1]
			}
			flush()
			for c == '{' && i < len(source) && source[i] != '}' {
				i++
			}
		case '[':
			// Skip the character class body.
			flush()
			for i++; i < len(source) && source[i] != ']'; i++ {
				if source[i] == '\\' {
					i++
				}
			}
			// The class itself may carry a quantifier; the next iteration
			// handles it against an empty run.
		case '.', '^', '$', '+', ']', '}':
			flush()
		default:
			run = append(run, c)
		}
	}
	flush()

	longest := ""
	for _, r := range runs {
		if len(r) > len(longest) {
			longest = r
		}
	}
	if len(longest) < minLiteralLen {
		return ""
	}
	return strings.ToLower(longest)
}

// lookaroundEnd reports whether the group opening at source[open] is a
// lookahead or lookbehind, returning the index of its closing paren so the
// caller can skip the asserted body.
func lookaroundEnd(source string, open int) (int, bool) {
	rest := source[open:]
	if !strings.HasPrefix(rest, "(?=") && !strings.HasPrefix(rest, "(?!") &&
		!strings.HasPrefix(rest, "(?<=") && !strings.HasPrefix(rest, "(?<!") {
		return 0, false
	}

	depth := 0
	for i := open; i < len(source); i++ {
		switch source[i] {
		case '\\':
			i++
		case '[':
			for i++; i < len(source) && source[i] != ']'; i++ {
				if source[i] == '\\' {
					i++
				}
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return len(source) - 1, true
}

func isClassEscape(c byte) bool {
	switch c {
	case 'd', 'D', 'w', 'W', 's', 'S', 'b', 'B', 'n', 'r', 't', 'f', 'v', 'x', 'u', 'p', 'P', 'k', 'A', 'z', 'Z':
		return true
	}
	return c >= '0' && c <= '9'
}
