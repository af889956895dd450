package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/internal/util"
	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/storage"
)

// AuthorizationRequest holds the parameters of an authorization request
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string // accepted as given
	Scope               string
	State               string
	CodeChallenge       string // stored, not verified
	CodeChallengeMethod string

	// ClientIP is used for audit logging only
	ClientIP string
}

// ExchangeRequest holds the parameters of a token request
type ExchangeRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string // accepted, not verified

	// ClientIP is used for audit logging only
	ClientIP string
}

// Authorize issues an authorization code for a registered client and
// returns the redirect URL carrying it. Every valid request is approved.
func (s *Server) Authorize(ctx context.Context, req AuthorizationRequest) (string, error) {
	ctx, span := s.startSpan(ctx, "oauth.authorize",
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrResponseType, req.ResponseType),
		attribute.Bool(instrumentation.AttrStatePresent, req.State != ""))
	defer span.End()

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			s.Auditor.LogAuthFailure(security.EventAuthorizationRejected, req.ClientID, req.ClientIP, "unknown_client")
			instrumentation.SetSpanError(span, ErrInvalidClient.Error())
			return "", ErrInvalidClient
		}
		instrumentation.RecordError(span, err)
		return "", fmt.Errorf("failed to get client: %w", err)
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		s.Auditor.LogAuthFailure(security.EventAuthorizationRejected, req.ClientID, req.ClientIP, "redirect_uri_not_registered")
		instrumentation.SetSpanError(span, ErrInvalidRedirectURI.Error())
		return "", ErrInvalidRedirectURI
	}

	// a registered URI that does not parse cannot carry the code
	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		instrumentation.SetSpanError(span, ErrInvalidRedirectURI.Error())
		return "", fmt.Errorf("%w: %v", ErrInvalidRedirectURI, err)
	}

	code, err := s.tokens.RandomHex(codeBytes)
	if err != nil {
		instrumentation.RecordError(span, err)
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	scope := req.Scope
	if scope == "" {
		scope = s.Config.DefaultScope
	}

	now := s.clock.Now()
	authCode := &storage.AuthorizationCode{
		Code:                code,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}
	if err := s.codeStore.SaveAuthorizationCode(ctx, authCode); err != nil {
		instrumentation.RecordError(span, err)
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	redirect.RawQuery = appendCallbackParams(redirect.RawQuery, code, req.State)

	pkce := req.CodeChallenge != ""
	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, scope)
	if pkce {
		instrumentation.AddPKCEAttributes(span, req.CodeChallengeMethod)
	}
	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordAuthorizationCodeIssued(ctx, pkce)
	}
	s.Auditor.LogAuthorizationCodeIssued(req.ClientID, req.ClientIP, scope, pkce)
	s.Logger.Debug("Issued authorization code",
		"client_id", util.SafeTruncate(req.ClientID, tokenIDLogLength),
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
		"scope", scope)

	return redirect.String(), nil
}

// Exchange redeems an authorization code for an access token.
//
// Checks run in order: grant type, client credentials, code existence and
// expiry, code binding. The returned token carries the granted scope as
// the "scope" extra.
func (s *Server) Exchange(ctx context.Context, req ExchangeRequest) (*oauth2.Token, error) {
	ctx, span := s.startSpan(ctx, "oauth.exchange",
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType))
	defer span.End()

	token, err := s.exchange(ctx, req)
	result := "success"
	if err != nil {
		result = exchangeErrorKind(err)
		instrumentation.SetSpanError(span, err.Error())
		s.Auditor.LogAuthFailure(security.EventAuthFailure, req.ClientID, req.ClientIP, result)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if m := s.metrics(); m != nil {
		m.RecordCodeExchange(ctx, result)
	}
	return token, err
}

func (s *Server) exchange(ctx context.Context, req ExchangeRequest) (*oauth2.Token, error) {
	if req.GrantType != GrantTypeAuthorizationCode {
		return nil, ErrUnsupportedGrantType
	}

	if err := s.clientStore.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		if errors.Is(err, storage.ErrInvalidClientCredentials) || errors.Is(err, storage.ErrClientNotFound) {
			return nil, ErrInvalidClientCredentials
		}
		return nil, fmt.Errorf("failed to validate client secret: %w", err)
	}

	now := s.clock.Now()
	authCode, err := s.codeStore.RedeemAuthorizationCode(ctx, req.Code, req.ClientID, req.RedirectURI, now)
	switch {
	case errors.Is(err, storage.ErrAuthorizationCodeNotFound), errors.Is(err, storage.ErrAuthorizationCodeExpired):
		return nil, ErrInvalidGrant
	case errors.Is(err, storage.ErrAuthorizationCodeMismatch):
		return nil, ErrGrantMismatch
	case err != nil:
		return nil, fmt.Errorf("failed to redeem authorization code: %w", err)
	}

	value, err := s.tokens.RandomHex(accessTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	ttl := time.Duration(s.Config.AccessTokenTTL) * time.Second
	accessToken := &storage.AccessToken{
		Token:     value,
		ClientID:  authCode.ClientID,
		Scope:     authCode.Scope,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.tokenStore.SaveAccessToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}

	s.Auditor.LogTokenIssued(authCode.ClientID, req.ClientIP, authCode.Scope)
	s.Logger.Info("Issued access token",
		"client_id", util.SafeTruncate(authCode.ClientID, tokenIDLogLength),
		"token_prefix", util.SafeTruncate(value, tokenIDLogLength),
		"scope", authCode.Scope)

	token := &oauth2.Token{
		AccessToken: value,
		TokenType:   TokenTypeBearer,
		Expiry:      accessToken.ExpiresAt,
		ExpiresIn:   s.Config.AccessTokenTTL,
	}
	return token.WithExtra(map[string]any{"scope": authCode.Scope}), nil
}

// exchangeErrorKind maps an exchange error to its OAuth error code for metrics and audit
func exchangeErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedGrantType):
		return "unsupported_grant_type"
	case errors.Is(err, ErrInvalidClientCredentials):
		return "invalid_client"
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrGrantMismatch):
		return "invalid_grant"
	default:
		return "server_error"
	}
}

// Validate reports whether token is a known access token whose expiry is
// strictly after now. Unknown and expired tokens are indistinguishable.
func (s *Server) Validate(ctx context.Context, token string) bool {
	ctx, span := s.startSpan(ctx, "oauth.validate")
	defer span.End()

	valid := s.validate(ctx, token)
	span.SetAttributes(attribute.Bool(instrumentation.AttrTokenValid, valid))
	if m := s.metrics(); m != nil {
		m.RecordTokenValidation(ctx, valid)
	}
	return valid
}

func (s *Server) validate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	accessToken, err := s.tokenStore.GetAccessToken(ctx, token)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) {
			s.Logger.Warn("Token lookup failed", "error", err)
		}
		return false
	}
	return !accessToken.IsExpired(s.clock.Now())
}

// appendCallbackParams adds code and state after the registered query,
// keeping its pairs in their original order and encoding. Pre-existing code
// or state pairs are dropped so the issued values are the only ones.
func appendCallbackParams(rawQuery, code, state string) string {
	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if name, err := url.QueryUnescape(key); err == nil && (name == "code" || name == "state") {
			continue
		}
		kept = append(kept, pair)
	}

	kept = append(kept, "code="+url.QueryEscape(code))
	if state != "" {
		kept = append(kept, "state="+url.QueryEscape(state))
	}
	return strings.Join(kept, "&")
}
