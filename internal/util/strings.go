package util

import (
	"net"
	"strings"
)

// SafeTruncate truncates s to at most maxLen bytes without panicking.
// It is used to log a recognisable prefix of codes and tokens.
// A negative maxLen yields "".
//
//	SafeTruncate("very-long-token-abc123", 8) // "very-lon"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL removes trailing slashes so endpoint paths can be appended
// to a configured base URL without doubling them.
//
//	NormalizeURL("https://example.com/") // "https://example.com"
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}

// IsLoopbackHostname reports whether hostname (without port, as returned by
// url.URL.Hostname) is "localhost" or a loopback IP. 0.0.0.0 is not loopback.
func IsLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}

	clean := strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]")
	if ip := net.ParseIP(clean); ip != nil {
		return ip.IsLoopback()
	}

	return false
}
