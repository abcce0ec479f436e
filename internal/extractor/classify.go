package extractor

import (
	"net/url"
	"strings"
)

// Classification is a loose "pattern + identifier" tuple used for link
// analytics and reporting. It deliberately covers platforms and URL shapes
// the strict extractor does not, and its output never feeds attribution.
type Classification struct {
	Pattern    string `json:"pattern"`
	Identifier string `json:"identifier,omitempty"`
}

// Classify buckets a URL into a reporting pattern. ActBlue URLs are split by
// their first and second path segments; other known fundraising hosts get a
// host-level pattern; everything else is "other".
func Classify(rawURL string) Classification {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Classification{Pattern: "invalid"}
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	segments := pathSegments(u.Path)

	switch host {
	case "secure.actblue.com":
		if len(segments) == 0 {
			return Classification{Pattern: "actblue:root"}
		}
		first := strings.ToLower(segments[0])
		if len(segments) >= 2 {
			return Classification{
				Pattern:    "actblue:" + first,
				Identifier: strings.ToLower(segments[1]),
			}
		}
		return Classification{Pattern: "actblue:" + first}
	case "secure.winred.com":
		return hostClassification("winred", segments)
	case "secure.anedot.com", "anedot.com":
		return hostClassification("anedot", segments)
	case "secure.pacservicesq.com", "pacservicesq.com":
		return hostClassification("psq", segments)
	case "secure.ngpvan.com", "secure.everyaction.com":
		return hostClassification("ngpvan", segments)
	}

	return Classification{Pattern: "other", Identifier: host}
}

func hostClassification(pattern string, segments []string) Classification {
	if len(segments) == 0 {
		return Classification{Pattern: pattern + ":root"}
	}
	return Classification{Pattern: pattern, Identifier: strings.ToLower(segments[0])}
}
