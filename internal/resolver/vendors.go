package resolver

import (
	"html"
	"regexp"
	"strings"
)

// Hop kinds, used to label resolver metrics.
const (
	hopHTTP   = "http"
	hopVendor = "vendor"
	hopMeta   = "meta_refresh"
	hopJS     = "javascript"
)

// bodyPattern is one way an interstitial page can name its redirect target.
// Patterns are tried in order; the first match advances the chain.
type bodyPattern struct {
	kind string
	re   *regexp.Regexp
}

// ESPs rarely use plain 3xx redirects. The common shapes are a JavaScript
// variable holding the target, data attributes on the click-through element,
// a form that POSTs through, a meta refresh, or an inline location assignment.
var bodyPatterns = []bodyPattern{
	{hopVendor, regexp.MustCompile(`(?i)var\s+(?:redirectUrl|redirect_url|targetUrl|destinationUrl)\s*=\s*["']([^"']+)["']`)},
	{hopVendor, regexp.MustCompile(`(?i)data-redirect-url\s*=\s*["']([^"']+)["']`)},
	{hopVendor, regexp.MustCompile(`(?i)data-target\s*=\s*["'](https?://[^"']+)["']`)},
	{hopVendor, regexp.MustCompile(`(?i)<form[^>]+action\s*=\s*["'](https?://[^"']+)["']`)},
	{hopMeta, regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]*content\s*=\s*["']?\s*\d+\s*;\s*url\s*=\s*([^"'>\s]+)`)},
	{hopJS, regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`)},
	{hopJS, regexp.MustCompile(`(?i)location\.href\s*=\s*["']([^"']+)["']`)},
	{hopJS, regexp.MustCompile(`(?i)location\.replace\(\s*["']([^"']+)["']\s*\)`)},
}

// scanBody looks for a redirect target embedded in an interstitial page.
// Returns the target and the kind of pattern that matched, or "" when the
// page does not redirect anywhere.
func scanBody(body []byte) (string, string) {
	for _, p := range bodyPatterns {
		if m := p.re.FindSubmatch(body); m != nil {
			target := strings.TrimSpace(html.UnescapeString(string(m[1])))
			if target != "" {
				return target, p.kind
			}
		}
	}
	return "", ""
}
