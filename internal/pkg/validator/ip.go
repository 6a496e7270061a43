// Package validator holds small input checks shared by middlewares
package validator

import (
	"net"
	"strings"
)

// UnknownIP stands in for a client address that cannot be parsed
const UnknownIP = "unknown"

// NormalizeIP strips an IPv6 zone, e.g. fe80::1%eth0 becomes fe80::1
func NormalizeIP(ip string) string {
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		return ip[:idx]
	}
	return strings.TrimSpace(ip)
}

// ClientIP returns the canonical form of ip, or UnknownIP
func ClientIP(ip string) string {
	parsed := net.ParseIP(NormalizeIP(ip))
	if parsed == nil {
		return UnknownIP
	}
	return parsed.String()
}
