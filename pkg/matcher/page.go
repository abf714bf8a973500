package matcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page holds the fields extracted from an HTML body. Extraction happens once
// per response; patterns are then applied against these pre-extracted values
// rather than re-walking the document per technology.
type Page struct {
	Title   string
	Scripts []string            // script src attributes, in document order
	Metas   map[string][]string // lowercased meta name -> content values
}

// ParsePage extracts script sources and meta tags from an HTML body. The
// parser is lenient; an error here means the document was unreadable and the
// caller should fall back to an empty page (body regexes still apply).
func ParsePage(body []byte) (*Page, error) {
	page := &Page{Metas: make(map[string][]string)}
	if len(body) == 0 {
		return page, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page, fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			page.Scripts = append(page.Scripts, src)
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			// Open Graph style tags use property instead of name.
			name, ok = s.Attr("property")
		}
		if !ok || name == "" {
			return
		}
		content := s.AttrOr("content", "")
		key := strings.ToLower(name)
		page.Metas[key] = append(page.Metas[key], content)
	})

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	return page, nil
}
