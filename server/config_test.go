package server

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestApplyTimeDefaults(t *testing.T) {
	tests := []struct {
		name                   string
		input                  *Config
		expectedAuthCodeTTL    int64
		expectedAccessTokenTTL int64
		expectedCleanup        time.Duration
	}{
		{
			name:                   "all zeros should get defaults",
			input:                  &Config{},
			expectedAuthCodeTTL:    600,
			expectedAccessTokenTTL: 3600,
			expectedCleanup:        time.Hour,
		},
		{
			name: "custom values should be preserved",
			input: &Config{
				AuthorizationCodeTTL: 300,
				AccessTokenTTL:       1800,
				CleanupInterval:      time.Minute,
			},
			expectedAuthCodeTTL:    300,
			expectedAccessTokenTTL: 1800,
			expectedCleanup:        time.Minute,
		},
		{
			name: "negative values should get defaults",
			input: &Config{
				AuthorizationCodeTTL: -1,
				AccessTokenTTL:       -60,
				CleanupInterval:      -time.Second,
			},
			expectedAuthCodeTTL:    600,
			expectedAccessTokenTTL: 3600,
			expectedCleanup:        time.Hour,
		},
		{
			name: "partial custom values",
			input: &Config{
				AuthorizationCodeTTL: 450,
			},
			expectedAuthCodeTTL:    450,
			expectedAccessTokenTTL: 3600,
			expectedCleanup:        time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyTimeDefaults(tt.input)

			if tt.input.AuthorizationCodeTTL != tt.expectedAuthCodeTTL {
				t.Errorf("AuthorizationCodeTTL = %d, want %d", tt.input.AuthorizationCodeTTL, tt.expectedAuthCodeTTL)
			}
			if tt.input.AccessTokenTTL != tt.expectedAccessTokenTTL {
				t.Errorf("AccessTokenTTL = %d, want %d", tt.input.AccessTokenTTL, tt.expectedAccessTokenTTL)
			}
			if tt.input.CleanupInterval != tt.expectedCleanup {
				t.Errorf("CleanupInterval = %v, want %v", tt.input.CleanupInterval, tt.expectedCleanup)
			}
		})
	}
}

func TestApplySecureDefaults(t *testing.T) {
	config := applySecureDefaults(&Config{Issuer: "https://auth.example.com///"}, slog.Default())

	if config.Issuer != "https://auth.example.com" {
		t.Errorf("Issuer = %q, want trailing slashes removed", config.Issuer)
	}
	if config.DefaultScope != ScopeRead {
		t.Errorf("DefaultScope = %q, want %q", config.DefaultScope, ScopeRead)
	}
	if !reflect.DeepEqual(config.SupportedScopes, []string{"read", "write", "admin"}) {
		t.Errorf("SupportedScopes = %v", config.SupportedScopes)
	}
	if config.SecretHashCost != bcrypt.DefaultCost {
		t.Errorf("SecretHashCost = %d, want %d", config.SecretHashCost, bcrypt.DefaultCost)
	}
}

func TestApplySecureDefaults_PreservesCustomValues(t *testing.T) {
	config := applySecureDefaults(&Config{
		Issuer:          "https://auth.example.com",
		DefaultScope:    "write",
		SupportedScopes: []string{"write"},
		SecretHashCost:  bcrypt.MinCost,
	}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	if config.DefaultScope != "write" {
		t.Errorf("DefaultScope = %q, want %q", config.DefaultScope, "write")
	}
	if !reflect.DeepEqual(config.SupportedScopes, []string{"write"}) {
		t.Errorf("SupportedScopes = %v, want [write]", config.SupportedScopes)
	}
	if config.SecretHashCost != bcrypt.MinCost {
		t.Errorf("SecretHashCost = %d, want %d", config.SecretHashCost, bcrypt.MinCost)
	}
}

func TestLogSecurityWarnings(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		wantWarning string
	}{
		{
			name:        "plain http on public host",
			config:      &Config{Issuer: "http://auth.example.com", SecretHashCost: bcrypt.DefaultCost},
			wantWarning: "plain HTTP",
		},
		{
			name:   "plain http on loopback",
			config: &Config{Issuer: "http://localhost:3000", SecretHashCost: bcrypt.DefaultCost},
		},
		{
			name:   "https",
			config: &Config{Issuer: "https://auth.example.com", SecretHashCost: bcrypt.DefaultCost},
		},
		{
			name:        "low hash cost",
			config:      &Config{Issuer: "https://auth.example.com", SecretHashCost: bcrypt.MinCost},
			wantWarning: "hash cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			logSecurityWarnings(tt.config, logger)

			out := buf.String()
			if tt.wantWarning == "" {
				if out != "" {
					t.Errorf("unexpected warning: %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.wantWarning) {
				t.Errorf("log output = %q, want it to contain %q", out, tt.wantWarning)
			}
		})
	}
}
