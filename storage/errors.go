package storage

import "errors"

// Sentinel errors returned by store implementations. Implementations wrap
// them with context using fmt.Errorf("%w: ...") so callers match with errors.Is.
var (
	// ErrClientNotFound indicates no client is registered under the given ID
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientCredentials indicates the client is unknown or the secret does not match
	ErrInvalidClientCredentials = errors.New("invalid client credentials")

	// ErrAuthorizationCodeNotFound indicates the code was never issued or was already redeemed
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

	// ErrAuthorizationCodeExpired indicates the code's expiry has passed
	ErrAuthorizationCodeExpired = errors.New("authorization code expired")

	// ErrAuthorizationCodeMismatch indicates the code was issued to another client or redirect URI
	ErrAuthorizationCodeMismatch = errors.New("authorization code binding mismatch")

	// ErrTokenNotFound indicates the access token is unknown
	ErrTokenNotFound = errors.New("access token not found")
)
