package server

import (
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-oauth-gate/internal/util"
)

// Scope and grant constants
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"

	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"

	ResponseTypeCode = "code"

	PKCEMethodS256 = "S256"

	TokenTypeBearer = "Bearer"

	TokenEndpointAuthMethodPost  = "client_secret_post"
	TokenEndpointAuthMethodBasic = "client_secret_basic"
)

// Random lengths in bytes; hex encoding doubles them
const (
	clientIDBytes     = 16
	clientSecretBytes = 32
	codeBytes         = 32
	accessTokenBytes  = 32
)

// Config holds authorization server configuration
type Config struct {
	// Issuer is the server's public base URL, without trailing slash
	Issuer string

	// AuthorizationCodeTTL is the authorization code lifetime in seconds. Default: 600
	AuthorizationCodeTTL int64

	// AccessTokenTTL is the access token lifetime in seconds. Default: 3600
	AccessTokenTTL int64

	// DefaultScope is granted when a request names none. Default: "read"
	DefaultScope string

	// SupportedScopes is advertised in metadata. Default: read, write, admin
	SupportedScopes []string

	// CleanupInterval is how often expired codes and tokens are swept. Default: 1 hour
	CleanupInterval time.Duration

	// SecretHashCost is the bcrypt cost for client secrets. Default: bcrypt.DefaultCost
	SecretHashCost int
}

// applySecureDefaults fills unset fields and logs warnings for risky settings
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)

	config.Issuer = util.NormalizeURL(config.Issuer)
	if config.DefaultScope == "" {
		config.DefaultScope = ScopeRead
	}
	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}
	}
	if config.SecretHashCost == 0 {
		config.SecretHashCost = bcrypt.DefaultCost
	}

	logSecurityWarnings(config, logger)
	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL <= 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
}

func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.SecretHashCost < bcrypt.DefaultCost {
		logger.Warn("Client secret hash cost below bcrypt default",
			"cost", config.SecretHashCost,
			"default", bcrypt.DefaultCost)
	}

	u, err := url.Parse(config.Issuer)
	if err != nil {
		return
	}
	if u.Scheme == "http" && !util.IsLoopbackHostname(u.Hostname()) {
		logger.Warn("Issuer uses plain HTTP on a non-loopback host; credentials will travel unencrypted",
			"issuer", config.Issuer)
	}
}
