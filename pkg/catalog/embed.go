package catalog

import _ "embed"

// builtinRuleset embeds a curated technologies.json so the library works out
// of the box. Callers tracking the full upstream ruleset should load their
// own copy with Load or LoadFile.
//
//go:embed technologies.json
var builtinRuleset []byte
