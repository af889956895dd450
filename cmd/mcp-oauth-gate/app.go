package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/cors"

	oauth "github.com/giantswarm/mcp-oauth-gate"
	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/server"
)

const bytesPerMB = 1024 * 1024

// app holds everything a running server needs
type app struct {
	cfg       serveConfig
	logger    *slog.Logger
	gateway   *oauth.Server
	inst      *instrumentation.Instrumentation
	startTime time.Time
}

func newApp(cfg serveConfig, logger *slog.Logger) (*app, error) {
	inst, err := instrumentation.New(instrumentation.Config{
		ServiceVersion: version,
		Enabled:        cfg.MetricsEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
	}

	gateway, err := oauth.NewServer(oauth.Config{
		Issuer:           cfg.BaseURL,
		StaticToken:      cfg.StaticToken,
		TrustedProxyHops: cfg.TrustProxyHops,
		RateLimit: oauth.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		CleanupInterval:    cfg.CleanupInterval,
		EnableAuditLogging: true,
		Logger:             logger,
		Instrumentation:    inst,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		gateway:   gateway,
		inst:      inst,
		startTime: time.Now(),
	}, nil
}

// routes builds the full handler chain. Only /mcp sits behind the gate.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	a.gateway.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", a.serveHealth)
	mux.HandleFunc("GET /version", a.serveVersion)
	mux.Handle("GET /metrics", a.inst.MetricsHandler())
	mux.Handle("/mcp", a.gateway.Protect(http.HandlerFunc(a.serveMCP)))

	var handler http.Handler = mux
	handler = security.SecurityHeadersMiddleware(a.cfg.BaseURL, handler)
	handler = requestLogging(a.logger, a.cfg.TrustProxyHops, handler)
	handler = security.RequestIDMiddleware(handler)
	handler = newCORS(a.cfg.CORSOrigin).Handler(handler)
	return handler
}

func (a *app) close(ctx context.Context) {
	a.gateway.Close()
	if err := a.inst.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shut down instrumentation", "error", err)
	}
}

func newCORS(origin string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept"},
		MaxAge:         86400,
	})
}

type healthResponse struct {
	Status    string       `json:"status"`
	Mode      string       `json:"mode"`
	Version   string       `json:"version"`
	Uptime    int64        `json:"uptime"`
	Memory    memoryStats  `json:"memory"`
	OAuth     oauthSummary `json:"oauth"`
	Timestamp string       `json:"timestamp"`
}

type memoryStats struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Unit  string `json:"unit"`
}

type oauthSummary struct {
	Enabled     bool   `json:"enabled"`
	MetadataURL string `json:"metadata_url"`
}

func (a *app) serveHealth(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Mode:    "http-oauth",
		Version: version,
		Uptime:  int64(time.Since(a.startTime).Seconds()),
		Memory: memoryStats{
			Used:  mem.HeapAlloc / bytesPerMB,
			Total: mem.HeapSys / bytesPerMB,
			Unit:  "MB",
		},
		OAuth: oauthSummary{
			Enabled:     true,
			MetadataURL: a.gateway.Auth.Config.Issuer + server.MetadataPath,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type versionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	OAuth   bool   `json:"oauth"`
}

func (a *app) serveVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version: version,
		Commit:  a.cfg.GitCommit,
		OAuth:   true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogging(logger *slog.Logger, trustedHops int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", security.GetClientIP(r, trustedHops),
			"user_agent", r.UserAgent(),
			"request_id", security.GetRequestID(r.Context()))
	})
}
