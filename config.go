package oauth

import (
	"log/slog"
	"time"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
)

const (
	// DefaultRateLimitRequestsPerSecond is the sustained per-IP rate for /oauth/register and /oauth/token
	DefaultRateLimitRequestsPerSecond = 10

	// DefaultRateLimitBurst is the per-IP burst for /oauth/register and /oauth/token
	DefaultRateLimitBurst = 20
)

// Config holds the gateway configuration
type Config struct {
	// Issuer is the public base URL of the server (required)
	Issuer string

	// StaticToken is the operator-provisioned bearer token accepted by the
	// gate in addition to issued access tokens. Empty disables it.
	StaticToken string

	// TrustedProxyHops is the number of reverse proxies in front of the
	// server. Zero ignores X-Forwarded-For and X-Real-IP.
	TrustedProxyHops int

	// RateLimit configures per-IP limiting of the registration and token endpoints
	RateLimit RateLimitConfig

	// AuthorizationCodeTTL is the code lifetime in seconds. Default: 600
	AuthorizationCodeTTL int64

	// AccessTokenTTL is the access token lifetime in seconds. Default: 3600
	AccessTokenTTL int64

	// CleanupInterval is how often expired codes and tokens are swept. Default: 1 hour
	CleanupInterval time.Duration

	// SecretHashCost is the bcrypt cost for client secrets. Zero means bcrypt.DefaultCost
	SecretHashCost int

	// EnableAuditLogging enables security audit logging
	EnableAuditLogging bool

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation enables metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Disabled turns rate limiting off
	Disabled bool

	// RequestsPerSecond allowed per client IP. Default: 10
	RequestsPerSecond float64

	// Burst is the maximum burst size per client IP. Default: 20
	Burst int
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = DefaultRateLimitRequestsPerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.TrustedProxyHops < 0 {
		c.TrustedProxyHops = 0
	}
}
