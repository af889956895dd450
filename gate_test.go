package oauth

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/giantswarm/mcp-oauth-gate/internal/testutil"
	"github.com/giantswarm/mcp-oauth-gate/security"
)

type fakeValidator struct {
	name  string
	valid map[string]bool
	calls int
}

func (v *fakeValidator) Name() string { return v.name }

func (v *fakeValidator) Validate(_ context.Context, token string) bool {
	v.calls++
	return v.valid[token]
}

// admitted records whether the wrapped handler ran and with which method
type admitted struct {
	called bool
	method string
}

func (a *admitted) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.called = true
		a.method, _ = AuthMethodFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_Middleware(t *testing.T) {
	first := &fakeValidator{name: "first", valid: map[string]bool{"one": true, "both": true}}
	second := &fakeValidator{name: "second", valid: map[string]bool{"two": true, "both": true}}

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
		wantMethod string
	}{
		{"scenario F: no header", "/mcp", "", http.StatusUnauthorized, ""},
		{"unknown token", "/mcp", "Bearer nope", http.StatusUnauthorized, ""},
		{"lowercase scheme", "/mcp", "bearer one", http.StatusUnauthorized, ""},
		{"basic scheme", "/mcp", "Basic b25lOg==", http.StatusUnauthorized, ""},
		{"empty bearer", "/mcp", "Bearer ", http.StatusUnauthorized, ""},
		{"double space", "/mcp", "Bearer  one", http.StatusUnauthorized, ""},
		{"first validator", "/mcp", "Bearer one", http.StatusOK, "first"},
		{"second validator", "/mcp", "Bearer two", http.StatusOK, "second"},
		{"first wins", "/mcp", "Bearer both", http.StatusOK, "first"},
		{"oauth tree bypass", "/oauth/token", "", http.StatusOK, ""},
		{"oauth root bypass", "/oauth", "", http.StatusOK, ""},
		{"well-known bypass", "/.well-known/oauth-authorization-server", "", http.StatusOK, ""},
		{"prefix lookalike is guarded", "/oauthx", "", http.StatusUnauthorized, ""},
		{"well-known lookalike is guarded", "/.well-knownfoo", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(testutil.DiscardLogger(), first, second)
			next := &admitted{}

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			gate.Middleware(next.handler()).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if next.called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("next called = %v", next.called)
			}
			if next.method != tt.wantMethod {
				t.Errorf("auth method = %q, want %q", next.method, tt.wantMethod)
			}
			if tt.wantStatus != http.StatusUnauthorized {
				return
			}
			if body := w.Body.String(); body != `{"error":"Unauthorized"}` {
				t.Errorf("body = %q, want {\"error\":\"Unauthorized\"}", body)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
		})
	}
}

func TestGate_NoValidators(t *testing.T) {
	gate := NewGate(nil)
	next := &admitted{}

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	gate.Middleware(next.handler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGate_AuditsRejection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	gate := NewGate(testutil.DiscardLogger())
	gate.SetAuditor(security.NewAuditor(logger, true))
	gate.SetTrustedProxyHops(1)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer super-secret-value")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := httptest.NewRecorder()
	gate.Middleware((&admitted{}).handler()).ServeHTTP(w, req)

	out := buf.String()
	if !strings.Contains(out, security.EventGateRejected) {
		t.Errorf("audit log missing %s event: %s", security.EventGateRejected, out)
	}
	if !strings.Contains(out, "203.0.113.7") {
		t.Errorf("audit log missing forwarded client IP: %s", out)
	}
	if strings.Contains(out, "super-secret-value") {
		t.Error("audit log contains the presented token")
	}
}

func TestStaticTokenValidator(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		token  string
		want   bool
	}{
		{"match", "s3cret", "s3cret", true},
		{"mismatch", "s3cret", "s3cre", false},
		{"empty secret never matches", "", "", false},
		{"empty secret rejects any token", "", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewStaticTokenValidator(tt.secret)
			if got := v.Validate(context.Background(), tt.token); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
			if v.Name() != AuthMethodStatic {
				t.Errorf("Name() = %q, want %q", v.Name(), AuthMethodStatic)
			}
		})
	}
}

func TestAuthMethodFromContext(t *testing.T) {
	if _, ok := AuthMethodFromContext(context.Background()); ok {
		t.Error("expected no auth method on empty context")
	}
	ctx := ContextWithAuthMethod(context.Background(), AuthMethodOAuth)
	if got, ok := AuthMethodFromContext(ctx); !ok || got != AuthMethodOAuth {
		t.Errorf("AuthMethodFromContext() = (%q, %v), want (%q, true)", got, ok, AuthMethodOAuth)
	}
}
