// Package security provides the protective pieces around the authorization
// server: audit logging with hashed identifiers, per-client-IP rate limiting,
// response security headers, client IP extraction behind proxies, request IDs,
// and random token generation.
//
// # Rate Limiting
//
// RateLimiter keeps one token bucket (golang.org/x/time/rate) per identifier,
// normally the client IP. The number of tracked identifiers is bounded; when
// the bound is reached the least recently used bucket is evicted, and idle
// buckets are swept periodically.
//
//	limiter := security.NewRateLimiter(security.RateLimiterConfig{
//		RequestsPerSecond: 5,
//		Burst:             10,
//	}, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//		// respond 429
//	}
//
// # Random Tokens
//
// Client identifiers, client secrets, authorization codes and access tokens
// are hex encodings of crypto/rand bytes (see RandomHex).
package security
