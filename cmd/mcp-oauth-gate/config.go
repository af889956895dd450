package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minStaticTokenLength is the shortest static token accepted without a warning
const minStaticTokenLength = 32

type serveConfig struct {
	Port            int
	BaseURL         string
	StaticToken     string
	TrustProxyHops  int
	CORSOrigin      string
	MetricsEnabled  bool
	RateLimitRPS    float64
	RateLimitBurst  int
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
	GitCommit       string
}

func loadServeConfig(v *viper.Viper, logger *slog.Logger) (serveConfig, error) {
	cfg := serveConfig{
		Port:            v.GetInt("port"),
		BaseURL:         strings.TrimSpace(v.GetString("base_url")),
		TrustProxyHops:  v.GetInt("trust_proxy"),
		CORSOrigin:      v.GetString("cors_origin"),
		MetricsEnabled:  v.GetBool("metrics"),
		RateLimitRPS:    v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		CleanupInterval: v.GetDuration("cleanup_interval"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		GitCommit:       gitCommit(v),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return serveConfig{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://localhost:%d", cfg.Port)
	}
	if cfg.TrustProxyHops < 0 {
		return serveConfig{}, fmt.Errorf("trust-proxy must not be negative")
	}
	if cfg.CleanupInterval < 0 {
		return serveConfig{}, fmt.Errorf("cleanup-interval must not be negative")
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = defaultCORSOrigin
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	token, err := loadStaticToken(v.GetString("auth_token"), v.GetString("auth_token_file"), logger)
	if err != nil {
		return serveConfig{}, err
	}
	cfg.StaticToken = token

	return cfg, nil
}

// loadStaticToken returns the token given directly, else the trimmed
// contents of tokenFile. One of them is required.
func loadStaticToken(token, tokenFile string, logger *slog.Logger) (string, error) {
	switch {
	case token != "":
		logger.Info("Using static token from AUTH_TOKEN")
	case tokenFile != "":
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read AUTH_TOKEN_FILE %s: %w", tokenFile, err)
		}
		token = strings.TrimSpace(string(data))
		logger.Info("Loaded static token from file", "path", tokenFile)
	}

	if token == "" {
		return "", fmt.Errorf("AUTH_TOKEN is required: set AUTH_TOKEN or AUTH_TOKEN_FILE (generate one with: openssl rand -base64 32)")
	}
	if len(token) < minStaticTokenLength {
		logger.Warn("Static token should be at least 32 characters", "length", len(token))
	}
	return token, nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
