package server

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-oauth-gate/internal/testutil"
	"github.com/giantswarm/mcp-oauth-gate/storage"
	"github.com/giantswarm/mcp-oauth-gate/storage/memory"
)

func TestServer_Cleanup(t *testing.T) {
	srv, store, clock := newTestServer(t)
	ctx := context.Background()
	clientID, secret := registerTestClient(t, srv)

	// one redeemed code produces a token; a second code stays outstanding
	code := authorizeTestCode(t, srv, clientID)
	token, err := srv.Exchange(ctx, ExchangeRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     clientID,
		ClientSecret: secret,
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	outstanding := authorizeTestCode(t, srv, clientID)

	srv.Cleanup(ctx)
	if !srv.Validate(ctx, token.AccessToken) {
		t.Fatal("Cleanup() removed an unexpired token")
	}

	clock.Advance(10 * time.Minute)
	srv.Cleanup(ctx)
	if _, err := store.RedeemAuthorizationCode(ctx, outstanding, clientID, testRedirectURI, testEpoch); err == nil {
		t.Error("expired code should have been evicted")
	}
	if _, err := store.GetAccessToken(ctx, token.AccessToken); err != nil {
		t.Errorf("token evicted too early: %v", err)
	}

	clock.Advance(50 * time.Minute)
	srv.Cleanup(ctx)
	if _, err := store.GetAccessToken(ctx, token.AccessToken); err == nil {
		t.Error("expired token should have been evicted")
	}

	// idempotent
	srv.Cleanup(ctx)
	if n, _ := store.CountClients(ctx); n != 1 {
		t.Errorf("CountClients() = %d, clients must never be evicted", n)
	}
}

// sweepRecorder wraps a CodeStore and signals each expired-code sweep
type sweepRecorder struct {
	storage.CodeStore
	swept chan int
}

func (r *sweepRecorder) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int, error) {
	n, err := r.CodeStore.DeleteExpiredAuthorizationCodes(ctx, now)
	select {
	case r.swept <- n:
	default:
	}
	return n, err
}

func TestServer_StartCleanup(t *testing.T) {
	store := memory.New()
	recorder := &sweepRecorder{CodeStore: store, swept: make(chan int, 1)}

	srv, err := New(store, recorder, store, &Config{
		Issuer:          "https://auth.example.com",
		CleanupInterval: 10 * time.Millisecond,
		SecretHashCost:  bcrypt.MinCost,
	}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	clock := testutil.NewMockTime(testEpoch)
	srv.SetClock(clock)

	clientID, _ := registerTestClient(t, srv)
	authorizeTestCode(t, srv, clientID)
	clock.Advance(time.Hour)

	srv.StartCleanup()
	srv.StartCleanup() // no-op while running
	defer srv.Stop()

	select {
	case n := <-recorder.swept:
		if n != 1 {
			t.Errorf("first sweep evicted %d codes, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup loop did not run")
	}
}

func TestServer_Stop(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// without StartCleanup
	srv.Stop()

	srv.Config.CleanupInterval = time.Hour
	srv.StartCleanup()
	srv.Stop()
	srv.Stop()

	// restartable after Stop
	srv.StartCleanup()
	srv.Stop()
}

func TestServer_StartCleanup_NegativeInterval(t *testing.T) {
	store := memory.New()
	srv, err := New(store, store, store, &Config{
		Issuer:          "https://auth.example.com",
		CleanupInterval: -time.Second,
	}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Config.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", srv.Config.CleanupInterval, time.Hour)
	}

	srv.StartCleanup()
	srv.Stop()
}
