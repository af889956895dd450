package security

// Event type constants for security audit logging.
const (
	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventClientRegistrationRejected is logged when registration input is rejected
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationRejected is logged when an authorization request names an
	// unknown client or an unregistered redirect URI
	EventAuthorizationRejected = "authorization_rejected"

	// EventTokenIssued is logged when an access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventAuthFailure is logged when a token exchange fails
	EventAuthFailure = "auth_failure"

	// EventGateRejected is logged when the bearer gate refuses a request
	EventGateRejected = "gate_rejected"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
