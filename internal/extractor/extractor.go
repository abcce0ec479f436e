package extractor

import (
	"net/url"
	"strings"
)

// Platform names match the keys used in entity donation-identifier maps.
const (
	PlatformWinRed  = "winred"
	PlatformAnedot  = "anedot"
	PlatformPSQ     = "psq"
	PlatformActBlue = "actblue"
)

// PlatformPriority is the fixed order in which extracted identifiers are
// tried during matching. The order is deliberate and load-bearing: changing
// it changes which entity wins when identifiers collide across platforms.
var PlatformPriority = []string{
	PlatformWinRed,
	PlatformAnedot,
	PlatformPSQ,
	PlatformActBlue,
}

func KnownPlatform(platform string) bool {
	for _, p := range PlatformPriority {
		if p == platform {
			return true
		}
	}
	return false
}

// Extraction is one platform identifier pulled out of a URL.
type Extraction struct {
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
}

// Extract recognizes known donation-platform URL shapes and returns the
// identifiers they carry, lower-cased. An unrecognized host yields nothing.
// A URL can in principle match more than one rule; exclusivity is not
// enforced here.
func Extract(rawURL string) []Extraction {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	segments := pathSegments(u.Path)

	var out []Extraction

	switch host {
	case "secure.winred.com":
		if len(segments) > 0 {
			out = append(out, Extraction{Platform: PlatformWinRed, Identifier: strings.ToLower(segments[0])})
		}
	case "secure.anedot.com", "anedot.com":
		if len(segments) > 0 {
			out = append(out, Extraction{Platform: PlatformAnedot, Identifier: strings.ToLower(segments[0])})
		}
	case "secure.pacservicesq.com", "pacservicesq.com":
		if len(segments) > 0 {
			out = append(out, Extraction{Platform: PlatformPSQ, Identifier: strings.ToLower(segments[0])})
		}
	case "secure.actblue.com":
		if len(segments) >= 2 && strings.EqualFold(segments[0], "donate") {
			out = append(out, Extraction{Platform: PlatformActBlue, Identifier: strings.ToLower(segments[1])})
		}
	}

	return out
}

// ExtractAll runs Extract over a set of URLs, preserving link order. Order
// matters downstream: within a platform, the first extracted identifier is
// tried first.
func ExtractAll(urls []string) []Extraction {
	var out []Extraction
	for _, u := range urls {
		out = append(out, Extract(u)...)
	}
	return out
}

func pathSegments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
