// Package urlutil joins configured base URLs with paths.
package urlutil

import (
	"strings"
)

// BuildAbsolute builds an absolute URL from a base URL and a path.
// An absolute path is returned unchanged.
func BuildAbsolute(base, path string) string {
	base = normalizeBaseURL(base)
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
