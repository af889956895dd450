package server

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
	"github.com/giantswarm/mcp-oauth-gate/internal/util"
	"github.com/giantswarm/mcp-oauth-gate/security"
	"github.com/giantswarm/mcp-oauth-gate/storage"
)

// RegistrationRequest holds the client metadata of a registration request
type RegistrationRequest struct {
	ClientName    string
	RedirectURIs  []string
	GrantTypes    []string // default: authorization_code
	ResponseTypes []string // default: code
	Scope         string   // default: Config.DefaultScope

	// ClientIP is used for audit logging only
	ClientIP string
}

// Register creates a new client. It returns the stored record and the
// plaintext secret; the secret is not retrievable afterwards.
func (s *Server) Register(ctx context.Context, req RegistrationRequest) (*storage.Client, string, error) {
	ctx, span := s.startSpan(ctx, "oauth.register")
	defer span.End()

	if req.ClientName == "" || len(req.RedirectURIs) == 0 {
		s.Auditor.LogEvent(security.Event{
			Type:      security.EventClientRegistrationRejected,
			IPAddress: req.ClientIP,
			Details:   map[string]any{"reason": "missing_required_metadata"},
		})
		instrumentation.SetSpanError(span, ErrValidation.Error())
		return nil, "", ErrValidation
	}

	clientID, err := s.tokens.RandomHex(clientIDBytes)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to generate client id: %w", err)
	}
	clientSecret, err := s.tokens.RandomHex(clientSecretBytes)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to generate client secret: %w", err)
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), s.Config.SecretHashCost)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	client := &storage.Client{
		ClientID:         clientID,
		ClientSecretHash: string(secretHash),
		ClientName:       req.ClientName,
		RedirectURIs:     append([]string(nil), req.RedirectURIs...),
		GrantTypes:       defaultStrings(req.GrantTypes, GrantTypeAuthorizationCode),
		ResponseTypes:    defaultStrings(req.ResponseTypes, ResponseTypeCode),
		Scope:            req.Scope,
		CreatedAt:        s.clock.Now(),
	}
	if client.Scope == "" {
		client.Scope = s.Config.DefaultScope
	}

	if err := s.clientStore.SaveClient(ctx, client); err != nil {
		instrumentation.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to save client: %w", err)
	}

	instrumentation.AddOAuthFlowAttributes(span, clientID, client.Scope)
	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordClientRegistration(ctx)
	}
	s.Auditor.LogClientRegistered(clientID, req.ClientIP, len(client.RedirectURIs))
	s.Logger.Info("Registered new client",
		"client_id", util.SafeTruncate(clientID, tokenIDLogLength),
		"client_name", client.ClientName,
		"redirect_uris", len(client.RedirectURIs))

	return client, clientSecret, nil
}

func defaultStrings(values []string, def string) []string {
	if len(values) == 0 {
		return []string{def}
	}
	return append([]string(nil), values...)
}
