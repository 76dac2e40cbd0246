// Package urlutil provides URL normalization shared by link discovery,
// website recovery, and the job queue's host derivation.
package urlutil

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingPrefixes lists query parameter prefixes stripped during
// normalization.
var trackingPrefixes = []string{"utm_", "fbclid", "gclid", "mc_eid", "mc_cid"}

// HostOf returns the lowercase host of a URL with any leading www. and port
// stripped. Returns "" for unparseable input. Must stay in sync with the SQL
// host expression used by the job queue.
func HostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if host == "" {
		// Bare "example.com/path" parses as a path.
		host = strings.SplitN(strings.SplitN(parsed.Path, "/", 2)[0], ":", 2)[0]
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// RegistrableDomain returns the eTLD+1 of a URL's host (example.co.uk for
// shop.example.co.uk). Falls back to the bare host when the public suffix
// list cannot produce one, e.g. for IPs or single-label hosts.
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether target shares base's registrable domain and uses
// http or https.
func SameSite(baseURL, targetURL string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	base := RegistrableDomain(baseURL)
	return base != "" && base == RegistrableDomain(targetURL)
}

// StripTracking removes common tracking query parameters and the fragment.
func StripTracking(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		for _, prefix := range trackingPrefixes {
			if strings.HasPrefix(lower, prefix) {
				query.Del(key)
				break
			}
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""
	return parsed.String()
}

// CanonicalHomepage normalizes a homepage URL for storage: https scheme,
// lowercase host without www., no path, query, fragment or trailing slash.
func CanonicalHomepage(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		host = strings.ToLower(strings.SplitN(parsed.Path, "/", 2)[0])
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}
	return "https://" + host
}

// HostMatchesAny reports whether the URL's host equals or is a subdomain of
// any of the given bare hosts.
func HostMatchesAny(rawURL string, hosts []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
