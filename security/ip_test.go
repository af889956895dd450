package security

import (
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name        string
		remoteAddr  string
		xff         string
		xRealIP     string
		trustedHops int
		want        string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.0.2.10:54321",
			want:       "192.0.2.10",
		},
		{
			name:       "forwarding headers ignored without trusted hops",
			remoteAddr: "192.0.2.10:54321",
			xff:        "203.0.113.5",
			xRealIP:    "203.0.113.6",
			want:       "192.0.2.10",
		},
		{
			name:        "single trusted proxy",
			remoteAddr:  "10.0.0.1:443",
			xff:         "203.0.113.5",
			trustedHops: 1,
			want:        "203.0.113.5",
		},
		{
			name:        "spoofed leftmost entry ignored",
			remoteAddr:  "10.0.0.1:443",
			xff:         "6.6.6.6, 203.0.113.5",
			trustedHops: 1,
			want:        "203.0.113.5",
		},
		{
			name:        "two trusted proxies",
			remoteAddr:  "10.0.0.1:443",
			xff:         "203.0.113.5, 10.0.0.2",
			trustedHops: 2,
			want:        "203.0.113.5",
		},
		{
			name:        "more hops than entries uses leftmost",
			remoteAddr:  "10.0.0.1:443",
			xff:         "203.0.113.5",
			trustedHops: 3,
			want:        "203.0.113.5",
		},
		{
			name:        "invalid XFF falls back to X-Real-IP",
			remoteAddr:  "10.0.0.1:443",
			xff:         "not-an-ip",
			xRealIP:     "203.0.113.7",
			trustedHops: 1,
			want:        "203.0.113.7",
		},
		{
			name:        "invalid headers fall back to remote addr",
			remoteAddr:  "10.0.0.1:443",
			xff:         "garbage",
			xRealIP:     "garbage",
			trustedHops: 1,
			want:        "10.0.0.1",
		},
		{
			name:        "IPv6 client",
			remoteAddr:  "[::1]:8080",
			xff:         "2001:db8::1",
			trustedHops: 1,
			want:        "2001:db8::1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.10",
			want:       "192.0.2.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := GetClientIP(req, tt.trustedHops); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
