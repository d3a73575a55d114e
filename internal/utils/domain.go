package utils

import (
	"net/url"
	"strings"
)

// ExtractDomain pulls the bare domain out of an organization URL: scheme
// optional, leading "www." dropped, port and path dropped, lowercased.
// Returns "" when nothing usable remains.
func ExtractDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host
}

// IsValidDomain reports whether a string looks like a resolvable domain
// name. Labels beyond ASCII pass through so Icelandic IDN domains are not
// rejected before lookup.
func IsValidDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 255 {
		return false
	}
	for _, ch := range domain {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '.' || ch == '-':
		case ch > 127:
		default:
			return false
		}
	}
	return strings.Contains(domain, ".")
}
