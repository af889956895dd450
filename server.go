package oauth

import (
	"fmt"
	"net/http"

	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/server"
	"github.com/giantswarm/mcp-oauth-gate/storage/memory"
)

// Server assembles the authorization server, its HTTP endpoints and the
// bearer gate over a shared in-memory store
type Server struct {
	// Auth is the authorization server core
	Auth *server.Server

	// Handler serves metadata and the /oauth endpoints
	Handler *Handler

	// Gate guards protected resources
	Gate *Gate

	store       *memory.Store
	rateLimiter *security.RateLimiter
	config      Config
}

// NewServer creates a gateway from cfg. Call Start to begin the expiry
// sweep and Close to release background goroutines.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	cfg.applyDefaults()
	logger := cfg.Logger

	store := memory.New()
	store.SetLogger(logger)

	auth, err := server.New(store, store, store, &server.Config{
		Issuer:               cfg.Issuer,
		AuthorizationCodeTTL: cfg.AuthorizationCodeTTL,
		AccessTokenTTL:       cfg.AccessTokenTTL,
		CleanupInterval:      cfg.CleanupInterval,
		SecretHashCost:       cfg.SecretHashCost,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization server: %w", err)
	}

	auditor := security.NewAuditor(logger, cfg.EnableAuditLogging)
	auth.SetAuditor(auditor)

	if cfg.Instrumentation != nil {
		store.SetInstrumentation(cfg.Instrumentation)
		auth.SetInstrumentation(cfg.Instrumentation)
		auditor.SetInstrumentation(cfg.Instrumentation)
	}

	handler := NewHandler(auth, logger)
	handler.SetTrustedProxyHops(cfg.TrustedProxyHops)

	var rl *security.RateLimiter
	if !cfg.RateLimit.Disabled {
		rl = security.NewRateLimiter(security.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}, logger)
		handler.SetRateLimiter(rl)
	}

	validators := []Validator{NewOAuthTokenValidator(auth)}
	if cfg.StaticToken != "" {
		validators = append(validators, NewStaticTokenValidator(cfg.StaticToken))
	}
	gate := NewGate(logger, validators...)
	gate.SetAuditor(auditor)
	gate.SetInstrumentation(cfg.Instrumentation)
	gate.SetTrustedProxyHops(cfg.TrustedProxyHops)

	return &Server{
		Auth:        auth,
		Handler:     handler,
		Gate:        gate,
		store:       store,
		rateLimiter: rl,
		config:      cfg,
	}, nil
}

// RegisterRoutes mounts the public OAuth endpoints on mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.Handler.RegisterRoutes(mux)
}

// Protect wraps next with the bearer gate
func (s *Server) Protect(next http.Handler) http.Handler {
	return s.Gate.Middleware(next)
}

// Start begins the periodic expiry sweep
func (s *Server) Start() {
	s.Auth.StartCleanup()
}

// Close stops the expiry sweep and the rate limiter's idle sweep
func (s *Server) Close() {
	s.Auth.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
