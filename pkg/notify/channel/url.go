package channel

import "strings"

// JoinURL appends path to base, or to def when base is empty. Trailing
// slashes on the base are dropped first so configured hosts with and without
// a trailing slash resolve to the same URL.
func JoinURL(base, def, path string) string {
	if base == "" {
		base = def
	}
	return strings.TrimRight(base, "/") + path
}

// BaseURL resolves the base_url key of cfg against def.
func BaseURL(cfg Config, def string) string {
	return strings.TrimRight(cfg.StringOr("base_url", def), "/")
}
