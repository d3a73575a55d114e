package utils

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// IsTrustedIP reports whether remoteAddr appears in a comma-separated list
// of IPs and CIDR ranges. Used to gate the run trigger endpoint.
func IsTrustedIP(remoteAddr string, trustedList string) bool {
	clientIP := net.ParseIP(remoteAddr)
	if clientIP == nil {
		return false
	}

	trustedItems := strings.Split(trustedList, ",")
	for _, item := range trustedItems {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if strings.Contains(item, "/") {
			_, subnet, err := net.ParseCIDR(item)
			if err == nil && subnet.Contains(clientIP) {
				return true
			}
		} else {
			if item == remoteAddr {
				return true
			}
		}
	}
	return false
}

type ProxyConfig struct {
	TrustProxy    bool
	UseCloudflare bool
}

// ExtractIP resolves the real client IP, preferring Cloudflare's header,
// then the first X-Forwarded-For hop, then the socket peer.
func ExtractIP(c echo.Context, cfg ProxyConfig) string {
	if cfg.UseCloudflare {
		if cfIP := c.Request().Header.Get("CF-Connecting-IP"); cfIP != "" {
			return cfIP
		}
	}

	if cfg.TrustProxy {
		if xff := c.Request().Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}

	return c.RealIP()
}
