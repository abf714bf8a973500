package catalog

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// rulesetDoc is the intermediate struct for parsing a ruleset document.
// The document has two top-level mappings: category id -> category and
// technology name -> signature entry.
type rulesetDoc struct {
	Categories   map[string]categoryDoc   `json:"categories" yaml:"categories"`
	Technologies map[string]technologyDoc `json:"technologies" yaml:"technologies"`
}

type categoryDoc struct {
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority" yaml:"priority"`
}

// technologyDoc maps one ruleset entry. Scalar pattern fields may appear as a
// single string or an array of strings; stringList absorbs both. "scripts" and
// "scriptSrc" are accepted as aliases of "script" for compatibility with the
// upstream ruleset formats.
type technologyDoc struct {
	Cats        []int                 `json:"cats" yaml:"cats"`
	Description string                `json:"description" yaml:"description"`
	Website     string                `json:"website" yaml:"website"`
	Icon        string                `json:"icon" yaml:"icon"`
	CPE         string                `json:"cpe" yaml:"cpe"`
	Headers     map[string]stringList `json:"headers" yaml:"headers"`
	Cookies     map[string]stringList `json:"cookies" yaml:"cookies"`
	Meta        map[string]stringList `json:"meta" yaml:"meta"`
	HTML        stringList            `json:"html" yaml:"html"`
	Script      stringList            `json:"script" yaml:"script"`
	Scripts     stringList            `json:"scripts" yaml:"scripts"`
	ScriptSrc   stringList            `json:"scriptSrc" yaml:"scriptSrc"`
	URL         stringList            `json:"url" yaml:"url"`
	Implies     stringList            `json:"implies" yaml:"implies"`
	Excludes    stringList            `json:"excludes" yaml:"excludes"`
}

// scriptPatterns merges the accepted script field spellings, in declaration
// order.
func (d technologyDoc) scriptPatterns() stringList {
	out := make(stringList, 0, len(d.Script)+len(d.Scripts)+len(d.ScriptSrc))
	out = append(out, d.Script...)
	out = append(out, d.Scripts...)
	out = append(out, d.ScriptSrc...)
	return out
}

// stringList normalizes the string-or-array shape of ruleset fields at load
// time so no type switching happens on the match path.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = stringList(many)
	return nil
}

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return fmt.Errorf("expected string or sequence of strings: %w", err)
		}
		*s = stringList(many)
		return nil
	default:
		return fmt.Errorf("expected string or sequence of strings, got yaml kind %d", value.Kind)
	}
}
