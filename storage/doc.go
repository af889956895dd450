// Package storage provides the interfaces and shared types for client, authorization
// code, and access token persistence.
//
// The storage package defines three store interfaces owned by the authorization server:
//   - ClientStore: registered OAuth clients, created once and never mutated
//   - CodeStore: single-use authorization codes with atomic redemption
//   - TokenStore: issued bearer tokens with absolute expiry
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage guarded by one lock per store
//
// Expiry is strict everywhere: a record whose expiry equals the current time
// is expired.
package storage
