package serp

import "strings"

const (
	secureScheme   = "https://"
	trackingMarker = "&ved"
)

// Normalize extracts the destination URL from a result href. Google wraps
// destinations in click-through redirects such as /url?q=https://...&ved=...,
// so the URL starts at the first https:// and ends before the tracking
// marker. It reports false when the href holds no https URL.
func Normalize(rawHref string) (string, bool) {
	start := strings.Index(rawHref, secureScheme)
	if start == -1 {
		return "", false
	}
	rest := rawHref[start:]
	if end := strings.Index(rest, trackingMarker); end != -1 {
		rest = rest[:end]
	}
	return rest, true
}
