// Package domains normalizes hostnames and implements the cookie
// domain-matching rule used when scoping sessions to a site.
//
// A session's domain is the registrable hostname with any "www." prefix
// stripped. Ports are dropped except for loopback hosts, where host:port
// distinguishes locally served apps.
package domains

import (
	"net/url"
	"strings"
)

// Normalize strips a leading "www." from a hostname.
func Normalize(hostname string) string {
	return strings.TrimPrefix(hostname, "www.")
}

// IsLoopback reports whether a normalized hostname is a loopback host.
func IsLoopback(host string) bool {
	return host == "localhost" || strings.HasPrefix(host, "127.")
}

// FromURL extracts the session domain from a page URL. Returns "" when the
// URL does not parse or has no hostname.
func FromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	domain := Normalize(u.Hostname())
	if IsLoopback(domain) && u.Port() != "" {
		return domain + ":" + u.Port()
	}
	return domain
}

// Matches reports whether a cookie's domain attribute covers the target
// session domain. The cookie domain's leading dot is stripped, then it
// matches when it equals the target, equals "www."+target, or is a
// dot-boundary suffix of the target (parent-domain cookies). A port on the
// target is ignored; cookies are host-scoped.
func Matches(cookieDomain, target string) bool {
	cd := strings.TrimPrefix(cookieDomain, ".")
	host := strings.SplitN(target, ":", 2)[0]
	if cd == "" || host == "" {
		return false
	}

	if cd == host || cd == "www."+host {
		return true
	}
	return strings.HasSuffix(host, "."+cd)
}
