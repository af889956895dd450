// Package memory provides an in-memory implementation of the OAuth storage interfaces.
//
// A single Store implements ClientStore, CodeStore and TokenStore. Each
// record kind has its own sync.RWMutex; authorization code redemption takes
// the write lock so that lookup, expiry check and removal are one atomic
// step. Nothing is persisted: a restart invalidates every client, code and
// token.
//
// Example usage:
//
//	store := memory.New()
//	srv, _ := server.New(store, store, store, &server.Config{Issuer: issuer}, logger)
package memory
