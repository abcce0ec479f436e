// Package urlnorm produces canonical comparison keys for CTA links.
package urlnorm

import (
	"net/url"
	"strings"
)

// Normalize strips the query string and fragment from a URL, returning
// scheme://host/path. It never fails: unparseable input is truncated at the
// first '?'. Normalize is idempotent.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if idx := strings.Index(raw, "?"); idx >= 0 {
			return raw[:idx]
		}
		return raw
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// Host returns the lower-cased host of a URL with any "www." prefix removed,
// or "" when the URL does not parse.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsRootPath reports whether a URL points at the root of its host ("/" or
// an empty path).
func IsRootPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Path == "" || u.Path == "/"
}
