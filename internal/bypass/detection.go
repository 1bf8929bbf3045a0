// Package bypass recognises the pages a search engine serves instead of
// results when it suspects automation.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of an HTTP response the detectors look at.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final request URL after redirects, if known.
	URL string
}

// Detector reports whether p is a block or interstitial page and, if so, its kind.
type Detector func(p Page) (detected bool, kind string)

// Block page kinds.
const (
	KindGoogleCaptcha = "Google CAPTCHA"
	KindGoogleConsent = "Google consent wall"
	KindCloudflare    = "Cloudflare"
)

// DefaultDetectors returns the detectors run on every SERP response.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleCaptcha,
		detectGoogleConsent,
		detectCloudflare,
	}
}

// Detect runs p through detectors and returns the first kind that matches.
func Detect(p Page, detectors []Detector) (string, bool) {
	for _, d := range detectors {
		if detected, kind := d(p); detected {
			return kind, true
		}
	}
	return "", false
}

// detectGoogleCaptcha matches the /sorry/ "unusual traffic" interstitial.
// Google serves it with 429 or 503, and sometimes 200 after a redirect.
func detectGoogleCaptcha(p Page) (bool, string) {
	if strings.Contains(p.URL, "/sorry/") {
		return true, KindGoogleCaptcha
	}
	if bytes.Contains(p.Body, []byte("/sorry/index")) ||
		bytes.Contains(p.Body, []byte("unusual traffic from your computer network")) ||
		(bytes.Contains(p.Body, []byte("g-recaptcha")) && bytes.Contains(p.Body, []byte("google.com/sorry"))) {
		return true, KindGoogleCaptcha
	}
	return false, ""
}

// detectGoogleConsent matches the EU cookie consent page that replaces
// results for clients without a consent cookie.
func detectGoogleConsent(p Page) (bool, string) {
	if strings.Contains(p.URL, "consent.google.") {
		return true, KindGoogleConsent
	}
	if bytes.Contains(p.Body, []byte("consent.google.com")) && bytes.Contains(p.Body, []byte("Before you continue")) {
		return true, KindGoogleConsent
	}
	return false, ""
}

// detectCloudflare catches regional front ends or proxies sitting behind
// Cloudflare's challenge.
func detectCloudflare(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(p.Header.Get("Server")), "cloudflare") {
		return true, KindCloudflare
	}
	if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(p.Body, []byte("cf-turnstile")) ||
		bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
		return true, KindCloudflare
	}
	return false, ""
}
