package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/internal/util"
	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/server"
)

const (
	// maxRequestBodyBytes bounds registration and token request bodies
	maxRequestBodyBytes = 100 << 10

	// tokenIDLogLength is how many characters of an identifier are logged
	tokenIDLogLength = 8

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// authorizationErrorTemplate is the page shown to browsers when an
// authorization request is rejected. Values are escaped by html/template.
var authorizationErrorTemplate = template.Must(template.New("authorization_error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Authorization Error</title>
</head>
<body>
<h1>Authorization Failed</h1>
<p>Error: {{.Message}}</p>
<p>Client ID: {{.ClientID}}</p>
</body>
</html>
`))

// Handler serves the authorization server's HTTP endpoints
type Handler struct {
	server           *server.Server
	rateLimiter      *security.RateLimiter
	trustedProxyHops int
	logger           *slog.Logger
	tracer           trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler
func NewHandler(srv *server.Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: srv,
		logger: logger,
	}

	if inst := srv.Instrumentation(); inst != nil {
		h.tracer = inst.Tracer("http")
	}

	return h
}

// SetRateLimiter enables per-client-IP rate limiting of registration and
// token requests
func (h *Handler) SetRateLimiter(rl *security.RateLimiter) {
	h.rateLimiter = rl
}

// SetTrustedProxyHops sets how many reverse proxies sit in front of the
// server. Zero ignores forwarding headers.
func (h *Handler) SetTrustedProxyHops(n int) {
	h.trustedProxyHops = n
}

// RegisterRoutes mounts the metadata and /oauth endpoints on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(server.MetadataPath, h.ServeAuthorizationServerMetadata)
	mux.HandleFunc(server.RegistrationEndpoint, h.ServeClientRegistration)
	mux.HandleFunc(server.AuthorizationEndpoint, h.ServeAuthorization)
	mux.HandleFunc(server.TokenEndpoint, h.ServeToken)
}

// ServeAuthorizationServerMetadata serves RFC 8414 Authorization Server Metadata
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	startTime := time.Now()
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(h.server.Metadata())
	h.recordHTTPMetrics("metadata", r.Method, http.StatusOK, startTime)
}

// ServeClientRegistration handles dynamic client registration (RFC 7591)
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.client_registration")
	defer span.End()

	clientIP := security.GetClientIP(r, h.trustedProxyHops)
	if h.checkRateLimit(ctx, w, clientIP, "register", startTime) {
		return
	}

	req, oauthErr := h.parseRegistrationRequest(w, r)
	if oauthErr != nil {
		h.logger.Warn("Client registration rejected", "ip", clientIP, "error", oauthErr.Description)
		instrumentation.SetSpanError(span, oauthErr.Code)
		h.writeError(w, oauthErr)
		h.recordHTTPMetrics("register", r.Method, oauthErr.Status, startTime)
		return
	}

	req.ClientIP = clientIP
	client, secret, err := h.server.Register(ctx, *req)
	if err != nil {
		oauthErr := errorFromServer(err)
		h.logger.Warn("Client registration failed", "ip", clientIP, "error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oauthErr)
		h.recordHTTPMetrics("register", r.Method, oauthErr.Status, startTime)
		return
	}

	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrClientID, client.ClientID))
	instrumentation.SetSpanSuccess(span)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	security.SetNoStoreHeaders(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ClientRegistrationResponse{
		ClientID:              client.ClientID,
		ClientSecret:          secret,
		ClientName:            client.ClientName,
		RedirectURIs:          client.RedirectURIs,
		GrantTypes:            client.GrantTypes,
		ResponseTypes:         client.ResponseTypes,
		Scope:                 client.Scope,
		ClientIDIssuedAt:      client.CreatedAt.Unix(),
		ClientSecretExpiresAt: 0,
	})
	h.recordHTTPMetrics("register", r.Method, http.StatusCreated, startTime)
}

// parseRegistrationRequest reads a JSON or form-encoded registration body.
// redirect_uris must be a JSON array of strings; any other shape is
// reported as invalid client metadata.
func (h *Handler) parseRegistrationRequest(w http.ResponseWriter, r *http.Request) (*server.RegistrationRequest, *Error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return nil, ErrInvalidRequest("Failed to parse request")
		}
		return &server.RegistrationRequest{
			ClientName:    r.PostForm.Get("client_name"),
			RedirectURIs:  formValues(r.PostForm, "redirect_uris"),
			GrantTypes:    formValues(r.PostForm, "grant_types"),
			ResponseTypes: formValues(r.PostForm, "response_types"),
			Scope:         r.PostForm.Get("scope"),
		}, nil
	}

	var body clientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrInvalidClientMetadata("Invalid client metadata: " + typeErr.Field)
		}
		return nil, ErrInvalidRequest("Invalid JSON")
	}

	redirectURIs, ok := stringSlice(body.RedirectURIs)
	if !ok {
		return nil, ErrInvalidClientMetadata("client_name and redirect_uris are required")
	}

	return &server.RegistrationRequest{
		ClientName:    body.ClientName,
		RedirectURIs:  redirectURIs,
		GrantTypes:    body.GrantTypes,
		ResponseTypes: body.ResponseTypes,
		Scope:         body.Scope,
	}, nil
}

// stringSlice converts a decoded JSON value to []string. A missing value
// yields (nil, true); anything other than an array of strings yields false.
func stringSlice(v any) ([]string, bool) {
	if v == nil {
		return nil, true
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// formValues returns repeated form values for key, also accepting key[]
func formValues(form url.Values, key string) []string {
	if values := form[key]; len(values) > 0 {
		return values
	}
	return form[key+"[]"]
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == contentTypeForm
}

// ServeAuthorization handles the authorization endpoint. Every valid
// request is approved immediately and redirected with a code.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.authorization")
	defer span.End()

	clientIP := security.GetClientIP(r, h.trustedProxyHops)
	query := r.URL.Query()
	clientID := query.Get("client_id")

	h.logger.Info("Authorization request",
		"client_id", util.SafeTruncate(clientID, tokenIDLogLength),
		"redirect_uri", query.Get("redirect_uri"),
		"ip", clientIP,
		"user_agent", r.UserAgent())

	redirectURL, err := h.server.Authorize(ctx, server.AuthorizationRequest{
		ClientID:            clientID,
		RedirectURI:         query.Get("redirect_uri"),
		ResponseType:        query.Get("response_type"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
		ClientIP:            clientIP,
	})
	if err != nil {
		oauthErr := errorFromServer(err)
		h.logger.Warn("Authorization failed",
			"error", err,
			"client_id", util.SafeTruncate(clientID, tokenIDLogLength),
			"redirect_uri", query.Get("redirect_uri"),
			"ip", clientIP)
		instrumentation.RecordError(span, err)
		h.writeAuthorizationError(w, r, oauthErr, clientID)
		h.recordHTTPMetrics("authorize", r.Method, oauthErr.Status, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	http.Redirect(w, r, redirectURL, http.StatusFound)
	h.recordHTTPMetrics("authorize", r.Method, http.StatusFound, startTime)
}

// writeAuthorizationError renders an HTML page for browsers and JSON otherwise
func (h *Handler) writeAuthorizationError(w http.ResponseWriter, r *http.Request, oauthErr *Error, clientID string) {
	if !acceptsHTML(r) {
		h.writeError(w, oauthErr)
		return
	}

	if clientID == "" {
		clientID = "Not provided"
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	security.SetNoStoreHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(oauthErr.Status)
	if err := authorizationErrorTemplate.Execute(w, struct {
		Message  string
		ClientID string
	}{oauthErr.Description, clientID}); err != nil {
		h.logger.Error("Failed to render authorization error page", "error", err)
	}
}

func acceptsHTML(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		if strings.Contains(accept, "text/html") {
			return true
		}
	}
	return false
}

// ServeToken handles the token endpoint (authorization_code grant only)
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.token_exchange")
	defer span.End()

	clientIP := security.GetClientIP(r, h.trustedProxyHops)
	if h.checkRateLimit(ctx, w, clientIP, "token", startTime) {
		return
	}

	req, oauthErr := h.parseTokenRequest(w, r)
	if oauthErr != nil {
		instrumentation.SetSpanError(span, oauthErr.Code)
		h.writeError(w, oauthErr)
		h.recordHTTPMetrics("token", r.Method, oauthErr.Status, startTime)
		return
	}
	req.ClientIP = clientIP

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType),
	)

	token, err := h.server.Exchange(ctx, *req)
	if err != nil {
		oauthErr := errorFromServer(err)
		h.logger.Warn("Token exchange failed",
			"client_id", util.SafeTruncate(req.ClientID, tokenIDLogLength),
			"ip", clientIP,
			"error", err)
		instrumentation.RecordError(span, err)
		h.writeError(w, oauthErr)
		h.recordHTTPMetrics("token", r.Method, oauthErr.Status, startTime)
		return
	}

	scope, _ := token.Extra("scope").(string)
	instrumentation.SetSpanSuccess(span)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	security.SetNoStoreHeaders(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		Scope:       scope,
	})
	h.recordHTTPMetrics("token", r.Method, http.StatusOK, startTime)
}

// parseTokenRequest reads a form or JSON token request. Client credentials
// from HTTP Basic (client_secret_basic) take precedence over body
// parameters (client_secret_post).
func (h *Handler) parseTokenRequest(w http.ResponseWriter, r *http.Request) (*server.ExchangeRequest, *Error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var body tokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == contentTypeJSON {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, ErrInvalidRequest("Invalid JSON")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, ErrInvalidRequest("Failed to parse request")
		}
		body = tokenRequest{
			GrantType:    r.PostForm.Get("grant_type"),
			Code:         r.PostForm.Get("code"),
			RedirectURI:  r.PostForm.Get("redirect_uri"),
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
			CodeVerifier: r.PostForm.Get("code_verifier"),
		}
	}

	if id, secret, ok := parseBasicAuth(r); ok {
		body.ClientID, body.ClientSecret = id, secret
	}

	return &server.ExchangeRequest{
		GrantType:    body.GrantType,
		Code:         body.Code,
		RedirectURI:  body.RedirectURI,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		CodeVerifier: body.CodeVerifier,
	}, nil
}

// parseBasicAuth reads client credentials from the Authorization header.
// RFC 6749 section 2.3.1 form-encodes both values before base64.
func parseBasicAuth(r *http.Request) (clientID, clientSecret string, ok bool) {
	clientID, clientSecret, ok = r.BasicAuth()
	if !ok {
		return "", "", false
	}
	if unescaped, err := url.QueryUnescape(clientID); err == nil {
		clientID = unescaped
	}
	if unescaped, err := url.QueryUnescape(clientSecret); err == nil {
		clientSecret = unescaped
	}
	return clientID, clientSecret, true
}

// checkRateLimit writes a 429 and returns true when clientIP is over its limit
func (h *Handler) checkRateLimit(ctx context.Context, w http.ResponseWriter, clientIP, endpoint string, startTime time.Time) bool {
	if h.rateLimiter == nil || h.rateLimiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
	if inst := h.server.Instrumentation(); inst != nil {
		inst.Metrics().RecordRateLimitExceeded(ctx, endpoint)
	}
	h.server.Auditor.LogRateLimitExceeded(clientIP, endpoint)

	w.Header().Set("Retry-After", "60")
	h.writeError(w, ErrRateLimitExceeded("Rate limit exceeded. Please try again later."))
	h.recordHTTPMetrics(endpoint, http.MethodPost, http.StatusTooManyRequests, startTime)
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, oauthErr *Error) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	security.SetNoStoreHeaders(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(oauthErr.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

func (h *Handler) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if h.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return h.tracer.Start(ctx, name)
}

// recordHTTPMetrics records HTTP request metrics
func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	inst := h.server.Instrumentation()
	if inst == nil {
		return
	}

	duration := time.Since(startTime).Seconds() * 1000 // convert to milliseconds
	inst.Metrics().RecordHTTPRequest(context.Background(), method, endpoint, status, duration)
}
