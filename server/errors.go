package server

import "errors"

// Sentinel errors returned (wrapped) by Server operations.
var (
	// ErrValidation is returned when registration input is incomplete
	ErrValidation = errors.New("client_name and redirect_uris are required")

	// ErrInvalidClient is returned when an authorization request names an unknown client
	ErrInvalidClient = errors.New("invalid client_id")

	// ErrInvalidRedirectURI is returned when the redirect URI is not registered for the client
	ErrInvalidRedirectURI = errors.New("invalid redirect_uri")

	// ErrUnsupportedGrantType is returned for any grant other than authorization_code
	ErrUnsupportedGrantType = errors.New("unsupported grant_type")

	// ErrInvalidClientCredentials is returned when the client is unknown or the secret is wrong
	ErrInvalidClientCredentials = errors.New("invalid client credentials")

	// ErrInvalidGrant is returned when the code is unknown, already redeemed, or expired
	ErrInvalidGrant = errors.New("invalid or expired authorization code")

	// ErrGrantMismatch is returned when the code was issued to another client or redirect URI
	ErrGrantMismatch = errors.New("invalid authorization code")

	// ErrUnauthorized is returned when a bearer credential is not accepted
	ErrUnauthorized = errors.New("unauthorized")
)
