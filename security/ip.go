package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the address a request originated from.
//
// trustedHops is the number of reverse proxies in front of the server. With
// zero hops forwarding headers are ignored and RemoteAddr is used, so clients
// cannot spoof their address. Otherwise X-Forwarded-For is read from the
// right, skipping the entries appended by our own proxies, and X-Real-IP is
// the fallback.
func GetClientIP(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if ip := clientIPFromXFF(r.Header.Get("X-Forwarded-For"), trustedHops); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return hostFromRemoteAddr(r.RemoteAddr)
}

// clientIPFromXFF picks the address the outermost trusted proxy saw.
// Each proxy appends its peer, so with trustedHops=1 the last entry is the
// peer of our own proxy:
//
//	client -> proxyA -> proxyB -> us
//	X-Forwarded-For: "client, proxyA"  trustedHops=1 -> "proxyA"
//	                                   trustedHops=2 -> "client"
func clientIPFromXFF(xff string, trustedHops int) string {
	if xff == "" {
		return ""
	}

	ips := strings.Split(xff, ",")
	idx := len(ips) - trustedHops
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(ips[idx])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

func hostFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
