package storage

import (
	"net/url"
	"strings"
)

// NormalizeLink resolves ref against base and canonicalizes scheme and host, so
// the same card or image is stored identically across passes.
func NormalizeLink(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if !u.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		u = b.ResolveReference(u)
	}
	if u.Host == "" {
		return u.String()
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && u.Port() == "80" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && u.Port() == "443" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	return u.String()
}
