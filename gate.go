package oauth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/server"
)

// Validator names reported by AuthMethodFromContext
const (
	AuthMethodOAuth  = "oauth"
	AuthMethodStatic = "static"
)

// unauthorizedBody is written verbatim on every gate rejection
const unauthorizedBody = `{"error":"Unauthorized"}`

// bypassPrefixes are path trees the gate never guards
var bypassPrefixes = []string{"/oauth", "/.well-known"}

// Validator decides whether a bearer token grants access
type Validator interface {
	// Name identifies the validator in logs, metrics and the request context
	Name() string

	// Validate reports whether token is acceptable
	Validate(ctx context.Context, token string) bool
}

// OAuthTokenValidator accepts access tokens issued by the authorization server
type OAuthTokenValidator struct {
	server *server.Server
}

// NewOAuthTokenValidator creates a validator backed by srv
func NewOAuthTokenValidator(srv *server.Server) *OAuthTokenValidator {
	return &OAuthTokenValidator{server: srv}
}

// Name implements Validator
func (v *OAuthTokenValidator) Name() string { return AuthMethodOAuth }

// Validate implements Validator
func (v *OAuthTokenValidator) Validate(ctx context.Context, token string) bool {
	return v.server.Validate(ctx, token)
}

// StaticTokenValidator accepts one operator-provisioned token
type StaticTokenValidator struct {
	token []byte
}

// NewStaticTokenValidator creates a validator for token. An empty token
// matches nothing.
func NewStaticTokenValidator(token string) *StaticTokenValidator {
	return &StaticTokenValidator{token: []byte(token)}
}

// Name implements Validator
func (v *StaticTokenValidator) Name() string { return AuthMethodStatic }

// Validate implements Validator using a constant-time comparison
func (v *StaticTokenValidator) Validate(_ context.Context, token string) bool {
	if len(v.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), v.token) == 1
}

// Gate is HTTP middleware requiring a bearer token accepted by one of its
// validators. Validators are tried in order and the first acceptance wins.
type Gate struct {
	validators       []Validator
	logger           *slog.Logger
	auditor          *security.Auditor
	instrumentation  *instrumentation.Instrumentation
	trustedProxyHops int
}

// NewGate creates a gate consulting validators in order
func NewGate(logger *slog.Logger, validators ...Validator) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		validators: validators,
		logger:     logger,
	}
}

// SetAuditor enables audit logging of rejected requests
func (g *Gate) SetAuditor(aud *security.Auditor) {
	g.auditor = aud
}

// SetInstrumentation enables gate decision metrics
func (g *Gate) SetInstrumentation(inst *instrumentation.Instrumentation) {
	g.instrumentation = inst
}

// SetTrustedProxyHops sets how many reverse proxies sit in front of the server
func (g *Gate) SetTrustedProxyHops(n int) {
	g.trustedProxyHops = n
}

// Middleware wraps next so that requests outside /oauth and /.well-known
// need "Authorization: Bearer <token>" with an accepted token
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isBypassPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			g.reject(w, r, "missing_or_malformed_authorization", "")
			return
		}

		for _, v := range g.validators {
			if v.Validate(r.Context(), token) {
				g.recordDecision(r.Context(), v.Name(), true)
				ctx := ContextWithAuthMethod(r.Context(), v.Name())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		g.reject(w, r, "invalid_token", token)
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, reason, presentedToken string) {
	clientIP := security.GetClientIP(r, g.trustedProxyHops)
	g.logger.Warn("Unauthorized request",
		"path", r.URL.Path,
		"ip", clientIP,
		"reason", reason)
	g.auditor.LogGateRejected(clientIP, r.URL.Path, presentedToken)
	g.recordDecision(r.Context(), "none", false)

	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

func (g *Gate) recordDecision(ctx context.Context, validator string, admitted bool) {
	if g.instrumentation == nil {
		return
	}
	g.instrumentation.Metrics().RecordGateDecision(ctx, validator, admitted)
}

func isBypassPath(path string) bool {
	for _, prefix := range bypassPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
// The scheme is matched case-sensitively with exactly one space.
func extractBearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

type contextKey string

const authMethodKey contextKey = "auth_method"

// ContextWithAuthMethod returns a context recording which validator admitted the request
func ContextWithAuthMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, authMethodKey, method)
}

// AuthMethodFromContext returns the name of the validator that admitted the request
func AuthMethodFromContext(ctx context.Context) (string, bool) {
	method, ok := ctx.Value(authMethodKey).(string)
	return method, ok
}
