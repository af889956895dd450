// Package server implements the authorization server core.
//
// Server owns the three stores (clients, authorization codes, access tokens)
// and is the only component that mutates them. It implements Dynamic Client
// Registration, the authorization-code grant with auto-approval, opaque
// bearer-token issuance and validation, and a periodic sweep of expired
// records.
//
// Example usage:
//
//	store := memory.New()
//
//	srv, err := server.New(store, store, store, &server.Config{
//	    Issuer: "https://auth.example.com",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.StartCleanup()
//	defer srv.Stop()
//
// Errors returned by Server methods wrap the sentinels in errors.go and are
// matched with errors.Is.
package server
