package oauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/mcp-oauth-gate/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest        = "invalid_request"
	ErrorCodeInvalidClient         = "invalid_client"
	ErrorCodeInvalidClientMetadata = "invalid_client_metadata"
	ErrorCodeInvalidGrant          = "invalid_grant"
	ErrorCodeUnsupportedGrantType  = "unsupported_grant_type"
	ErrorCodeServerError           = "server_error"
	ErrorCodeRateLimitExceeded     = "rate_limit_exceeded"
)

// Error represents an OAuth 2.0 error response
type Error struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates a new OAuth error
func NewError(code, description string, status int) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors. Every failure of the authorization endpoints is a 400.
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *Error {
		return NewError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates the client is unknown or failed authentication
	ErrInvalidClient = func(desc string) *Error {
		return NewError(ErrorCodeInvalidClient, desc, http.StatusBadRequest)
	}

	// ErrInvalidClientMetadata indicates registration metadata is incomplete (RFC 7591)
	ErrInvalidClientMetadata = func(desc string) *Error {
		return NewError(ErrorCodeInvalidClientMetadata, desc, http.StatusBadRequest)
	}

	// ErrInvalidGrant indicates the authorization code is invalid, expired, or bound elsewhere
	ErrInvalidGrant = func(desc string) *Error {
		return NewError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates the grant type is not supported
	ErrUnsupportedGrantType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *Error {
		return NewError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrRateLimitExceeded indicates the caller is sending too many requests
	ErrRateLimitExceeded = func(desc string) *Error {
		return NewError(ErrorCodeRateLimitExceeded, desc, http.StatusTooManyRequests)
	}
)

// errorFromServer maps an authorization server error to its HTTP form.
// Unrecognized errors become server_error without leaking details.
func errorFromServer(err error) *Error {
	switch {
	case errors.Is(err, server.ErrValidation):
		return ErrInvalidClientMetadata("client_name and redirect_uris are required")
	case errors.Is(err, server.ErrInvalidClient):
		return ErrInvalidClient("Invalid client_id")
	case errors.Is(err, server.ErrInvalidRedirectURI):
		return ErrInvalidRequest("Invalid redirect_uri")
	case errors.Is(err, server.ErrUnsupportedGrantType):
		return ErrUnsupportedGrantType("Unsupported grant_type")
	case errors.Is(err, server.ErrInvalidClientCredentials):
		return ErrInvalidClient("Invalid client credentials")
	case errors.Is(err, server.ErrInvalidGrant):
		return ErrInvalidGrant("Invalid or expired authorization code")
	case errors.Is(err, server.ErrGrantMismatch):
		return ErrInvalidGrant("Invalid authorization code")
	default:
		return ErrServerError("Internal server error")
	}
}
