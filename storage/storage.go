// Package storage defines the interfaces for the three stores owned by the
// authorization server: registered clients, single-use authorization codes,
// and issued access tokens.
package storage

import (
	"context"
	"time"
)

// ClientStore defines the interface for managing OAuth client registrations.
// Clients are created once and never mutated or deleted.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks clientSecret against the stored hash.
	// Unknown clients and wrong secrets return the same error and take
	// the same time.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// CountClients returns the number of registered clients
	CountClients(ctx context.Context) (int, error)
}

// CodeStore defines the interface for single-use authorization codes.
type CodeStore interface {
	// SaveAuthorizationCode saves an issued authorization code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// RedeemAuthorizationCode atomically looks up, checks and removes a code.
	//
	// The code is looked up, its expiry is compared against now, its binding
	// is compared against clientID and redirectURI, and the entry is deleted,
	// all under one lock. Of any number of concurrent callers presenting the
	// same code, at most one gets a nil error.
	//
	// Errors:
	//   - ErrAuthorizationCodeNotFound: unknown or already redeemed
	//   - ErrAuthorizationCodeExpired: expiry at or before now
	//   - ErrAuthorizationCodeMismatch: bound to another client or redirect URI
	//
	// A mismatched code is left in place; an expired one is removed.
	RedeemAuthorizationCode(ctx context.Context, code, clientID, redirectURI string, now time.Time) (*AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes removes every code whose expiry is at
	// or before now and returns how many were removed
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int, error)
}

// TokenStore defines the interface for issued access tokens.
type TokenStore interface {
	// SaveAccessToken saves an issued access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves a token by value. Expired tokens that have
	// not been swept yet are still returned; callers check ExpiresAt.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteExpiredAccessTokens removes every token whose expiry is at or
	// before now and returns how many were removed
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int, error)
}

// Client represents a registered OAuth client
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash, the plaintext is returned once at registration
	ClientName       string
	RedirectURIs     []string
	GrantTypes       []string
	ResponseTypes    []string
	Scope            string
	CreatedAt        time.Time
}

// HasRedirectURI reports whether uri is one of the client's registered
// redirect URIs, compared by exact string match.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode represents an issued authorization code
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string // stored for the record, not verified at exchange
	CodeChallengeMethod string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// AccessToken represents an issued bearer token
type AccessToken struct {
	Token     string
	ClientID  string
	Scope     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token's expiry is at or before now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
