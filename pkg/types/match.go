package types

// PatternMatch is a single raw hit: one pattern of one technology matched one
// value extracted from the response. Raw hits are transient; the resolver
// folds them into TechMatches.
type PatternMatch struct {
	Technology string  // technology name, key into the catalog
	Surface    Surface // which response surface the pattern hit
	Key        string  // header/cookie/meta name for keyed surfaces, "" otherwise
	Pattern    string  // raw regex source, for diagnostics
	Confidence int     // confidence carried by the pattern (0-100)
	Version    string  // version resolved from the matched value, "" if none
}

// TechMatch is a final detection result for one technology. Technologies are
// referenced by name into the catalog that produced the match; the commonly
// reported metadata is copied in so results serialize standalone.
type TechMatch struct {
	Name        string     `json:"name"`
	Version     string     `json:"version,omitempty"`
	Confidence  int        `json:"confidence"`
	Categories  []Category `json:"categories,omitempty"`
	Website     string     `json:"website,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	CPE         string     `json:"cpe,omitempty"`
	Description string     `json:"description,omitempty"`
	Surfaces    []Surface  `json:"surfaces,omitempty"` // surfaces that contributed direct hits
	Implied     bool       `json:"implied,omitempty"`  // true when present only via an implies edge
}
