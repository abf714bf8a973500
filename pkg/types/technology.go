package types

// Category classifies technologies in groups such as "CMS" or "Web servers".
// The set of categories is defined once by the ruleset document and referenced
// by id from technology entries.
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority,omitempty"`
}

// Surface identifies the part of a response a pattern is matched against.
type Surface string

const (
	SurfaceURL     Surface = "url"
	SurfaceHeaders Surface = "headers"
	SurfaceCookies Surface = "cookies"
	SurfaceHTML    Surface = "html"
	SurfaceScript  Surface = "script"
	SurfaceMeta    Surface = "meta"
)
