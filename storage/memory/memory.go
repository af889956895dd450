// Package memory provides an in-memory implementation of the storage interfaces.
// Every record is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/internal/util"
	"github.com/giantswarm/mcp-oauth-gate/storage"
)

const (
	// tokenIDLogLength is the number of characters to include when logging codes and tokens
	tokenIDLogLength = 8

	// dummySecretHash is compared against when the client does not exist so that
	// lookups for unknown clients cost the same as for known ones (bcrypt of "test")
	dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// Store is an in-memory implementation of ClientStore, CodeStore and TokenStore.
// Each of the three maps is guarded by its own lock; no operation holds more
// than one of them.
type Store struct {
	clientsMu sync.RWMutex
	clients   map[string]*storage.Client

	codesMu sync.Mutex
	codes   map[string]*storage.AuthorizationCode

	tokensMu sync.RWMutex
	tokens   map[string]*storage.AccessToken

	// guards logger and instrumentation fields
	mu sync.RWMutex

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// lock-free sizes for the gauge callbacks
	clientsCount atomic.Int64
	codesCount   atomic.Int64
	tokensCount  atomic.Int64

	logger *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.CodeStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		clients: make(map[string]*storage.Client),
		codes:   make(map[string]*storage.AuthorizationCode),
		tokens:  make(map[string]*storage.AccessToken),
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.mu.Unlock()

	if inst == nil {
		return
	}

	err := inst.RegisterStorageSizeCallbacks(
		func() int64 { return s.clientsCount.Load() },
		func() int64 { return s.codesCount.Load() },
		func() int64 { return s.tokensCount.Load() },
	)
	if err != nil {
		s.log().Warn("Failed to register storage size callbacks", "error", err)
	}
}

func (s *Store) log() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, existed := s.clients[client.ClientID]; !existed {
		s.clientsCount.Add(1)
	}
	s.clients[client.ClientID] = cloneClient(client)

	s.log().Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient retrieves a client by ID. The returned record is a copy.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
		return nil, err
	}

	return cloneClient(client), nil
}

// ValidateClientSecret validates a client's secret using bcrypt.
// A bcrypt comparison runs whether or not the client exists.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	hashToCompare := dummySecretHash

	client, lookupErr := s.GetClient(ctx, clientID)
	if lookupErr == nil && client.ClientSecretHash != "" {
		hashToCompare = client.ClientSecretHash
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	if lookupErr != nil || client.ClientSecretHash == "" || bcryptErr != nil {
		return storage.ErrInvalidClientCredentials
	}

	return nil
}

// CountClients returns the number of registered clients
func (s *Store) CountClients(_ context.Context) (int, error) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients), nil
}

func cloneClient(c *storage.Client) *storage.Client {
	cp := *c
	cp.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	cp.GrantTypes = append([]string(nil), c.GrantTypes...)
	cp.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	return &cp
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.codesMu.Lock()
	defer s.codesMu.Unlock()

	if _, existed := s.codes[code.Code]; !existed {
		s.codesCount.Add(1)
	}
	codeCopy := *code
	s.codes[code.Code] = &codeCopy

	s.log().Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Code, tokenIDLogLength),
		"client_id", code.ClientID)
	return nil
}

// RedeemAuthorizationCode atomically checks and removes an authorization code.
// Lookup, expiry check, binding check and deletion happen under one lock, so
// only one of any number of concurrent callers can succeed.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, code, clientID, redirectURI string, now time.Time) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "redeem_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "redeem_authorization_code", err, startTime)
	}()

	s.codesMu.Lock()
	defer s.codesMu.Unlock()

	authCode, ok := s.codes[code]
	if !ok {
		err = storage.ErrAuthorizationCodeNotFound
		return nil, err
	}

	if !authCode.ExpiresAt.After(now) {
		// expired codes are dropped here rather than waiting for the sweep
		delete(s.codes, code)
		s.codesCount.Add(-1)
		err = storage.ErrAuthorizationCodeExpired
		return nil, err
	}

	// a mismatch leaves the code in place for the client it was issued to
	if authCode.ClientID != clientID || authCode.RedirectURI != redirectURI {
		s.log().Warn("Authorization code presented with mismatched binding",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
			"client_id", clientID)
		err = storage.ErrAuthorizationCodeMismatch
		return nil, err
	}

	delete(s.codes, code)
	s.codesCount.Add(-1)

	s.log().Debug("Redeemed authorization code",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
		"client_id", clientID)

	return authCode, nil
}

// DeleteExpiredAuthorizationCodes removes codes whose expiry is at or before now
func (s *Store) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.startStorageSpan(ctx, "delete_expired_authorization_codes")
	defer span.End()

	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_expired_authorization_codes", nil, startTime)
	}()

	s.codesMu.Lock()
	defer s.codesMu.Unlock()

	removed := 0
	for value, code := range s.codes {
		if !code.ExpiresAt.After(now) {
			delete(s.codes, value)
			removed++
		}
	}
	s.codesCount.Add(-int64(removed))

	return removed, nil
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveAccessToken saves an issued access token
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_access_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_access_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("invalid access token")
		return err
	}

	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()

	if _, existed := s.tokens[token.Token]; !existed {
		s.tokensCount.Add(1)
	}
	tokenCopy := *token
	s.tokens[token.Token] = &tokenCopy

	s.log().Debug("Saved access token",
		"token_prefix", util.SafeTruncate(token.Token, tokenIDLogLength),
		"client_id", token.ClientID)
	return nil
}

// GetAccessToken retrieves an access token by value. The returned record is a copy.
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	ctx, span := s.startStorageSpan(ctx, "get_access_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_access_token", err, startTime)
	}()

	s.tokensMu.RLock()
	defer s.tokensMu.RUnlock()

	stored, ok := s.tokens[token]
	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}

	tokenCopy := *stored
	return &tokenCopy, nil
}

// DeleteExpiredAccessTokens removes tokens whose expiry is at or before now
func (s *Store) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.startStorageSpan(ctx, "delete_expired_access_tokens")
	defer span.End()

	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_expired_access_tokens", nil, startTime)
	}()

	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()

	removed := 0
	for value, token := range s.tokens {
		if token.IsExpired(now) {
			delete(s.tokens, value)
			removed++
		}
	}
	s.tokensCount.Add(-int64(removed))

	return removed, nil
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	s.mu.RLock()
	tracer := s.tracer
	s.mu.RUnlock()

	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String(instrumentation.AttrStorageOperation, operation),
			attribute.String(instrumentation.AttrStorageType, "memory"),
		))
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	s.mu.RLock()
	inst := s.instrumentation
	s.mu.RUnlock()

	if inst == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
