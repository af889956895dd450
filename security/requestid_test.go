package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if id1 == id2 {
		t.Error("Expected unique request IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("GenerateRequestID() = %q, not a UUID: %v", id1, err)
	}
	if !isValidRequestID(id1) {
		t.Errorf("generated ID %q should pass validation", id1)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-request-id-123")

	if got := GetRequestID(ctx); got != "test-request-id-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "test-request-id-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestIsValidRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		valid     bool
	}{
		{name: "alphanumeric", requestID: "abc123", valid: true},
		{name: "uuid", requestID: "550e8400-e29b-41d4-a716-446655440000", valid: true},
		{name: "underscores", requestID: "req_abc_123", valid: true},
		{name: "max length", requestID: strings.Repeat("a", 128), valid: true},
		{name: "empty", requestID: "", valid: false},
		{name: "too long", requestID: strings.Repeat("a", 129), valid: false},
		{name: "CRLF", requestID: "id\r\nX-Injected: evil", valid: false},
		{name: "spaces", requestID: "id with spaces", valid: false},
		{name: "markup", requestID: "<script>alert(1)</script>", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidRequestID(tt.requestID); got != tt.valid {
				t.Errorf("isValidRequestID(%q) = %v, want %v", tt.requestID, got, tt.valid)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		existingHeader string
		expectNew      bool
	}{
		{
			name:      "generates new ID when not present",
			expectNew: true,
		},
		{
			name:           "preserves valid existing ID from upstream",
			existingHeader: "upstream-request-id-xyz",
			expectNew:      false,
		},
		{
			name:           "rejects invalid ID with spaces",
			existingHeader: "id with spaces",
			expectNew:      true,
		},
		{
			name:           "rejects ID with special characters",
			existingHeader: "<script>alert(1)</script>",
			expectNew:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.existingHeader != "" {
				req.Header.Set(RequestIDHeader, tt.existingHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			responseID := rec.Header().Get(RequestIDHeader)
			if responseID == "" {
				t.Fatal("Expected X-Request-ID header in response")
			}
			if captured != responseID {
				t.Errorf("context ID %q != response header %q", captured, responseID)
			}

			if tt.expectNew {
				if captured == tt.existingHeader {
					t.Error("Expected new request ID to be generated")
				}
				if _, err := uuid.Parse(captured); err != nil {
					t.Errorf("generated ID %q is not a UUID", captured)
				}
			} else if captured != tt.existingHeader {
				t.Errorf("Expected %s, got %s", tt.existingHeader, captured)
			}
		})
	}
}
