package server

// Endpoint paths relative to the issuer
const (
	MetadataPath          = "/.well-known/oauth-authorization-server"
	AuthorizationEndpoint = "/oauth/authorize"
	TokenEndpoint         = "/oauth/token"
	RegistrationEndpoint  = "/oauth/register"
	DocumentationPath     = "/docs"
)

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	// Issuer is the authorization server's issuer identifier URL
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// RegistrationEndpoint is the URL of the dynamic client registration endpoint (RFC 7591)
	RegistrationEndpoint string `json:"registration_endpoint"`

	ScopesSupported        []string `json:"scopes_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported advertises refresh_token although no refresh grant is served
	GrantTypesSupported []string `json:"grant_types_supported"`

	// CodeChallengeMethodsSupported is advertised; challenges are stored but not verified
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`

	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ServiceDocumentation              string   `json:"service_documentation"`
	UILocalesSupported                []string `json:"ui_locales_supported"`
}

// Metadata describes the server's endpoints and capabilities. It depends on
// configuration only.
func (s *Server) Metadata() *AuthorizationServerMetadata {
	issuer := s.Config.Issuer
	return &AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + AuthorizationEndpoint,
		TokenEndpoint:                     issuer + TokenEndpoint,
		RegistrationEndpoint:              issuer + RegistrationEndpoint,
		ScopesSupported:                   append([]string(nil), s.Config.SupportedScopes...),
		ResponseTypesSupported:            []string{ResponseTypeCode},
		GrantTypesSupported:               []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{PKCEMethodS256},
		TokenEndpointAuthMethodsSupported: []string{TokenEndpointAuthMethodPost, TokenEndpointAuthMethodBasic},
		ServiceDocumentation:              issuer + DocumentationPath,
		UILocalesSupported:                []string{"en-US"},
	}
}
