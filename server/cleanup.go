package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/mcp-oauth-gate/instrumentation"
)

// Cleanup evicts every authorization code and access token whose expiry is
// at or before now. Store failures are logged, not returned.
func (s *Server) Cleanup(ctx context.Context) {
	ctx, span := s.startSpan(ctx, "oauth.cleanup")
	defer span.End()

	now := s.clock.Now()

	codes, err := s.codeStore.DeleteExpiredAuthorizationCodes(ctx, now)
	if err != nil {
		s.Logger.Error("Failed to delete expired authorization codes", "error", err)
		instrumentation.RecordError(span, err)
	}
	tokens, err := s.tokenStore.DeleteExpiredAccessTokens(ctx, now)
	if err != nil {
		s.Logger.Error("Failed to delete expired access tokens", "error", err)
		instrumentation.RecordError(span, err)
	}

	span.SetAttributes(
		attribute.Int(instrumentation.AttrCleanupCodes, codes),
		attribute.Int(instrumentation.AttrCleanupTokens, tokens),
	)
	if m := s.metrics(); m != nil {
		m.RecordCleanup(ctx, "authorization_code", codes)
		m.RecordCleanup(ctx, "access_token", tokens)
	}

	if codes > 0 || tokens > 0 {
		s.Logger.Info("Cleaned up expired grants",
			"authorization_codes", codes,
			"access_tokens", tokens)
	}
}

// StartCleanup runs Cleanup every Config.CleanupInterval in a background
// goroutine until Stop is called. Calling it while already running is a no-op.
func (s *Server) StartCleanup() {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	if s.cleanupStop != nil {
		return
	}

	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})
	go s.cleanupLoop(s.Config.CleanupInterval, s.cleanupStop, s.cleanupDone)

	s.Logger.Debug("Started cleanup loop", "interval", s.Config.CleanupInterval)
}

func (s *Server) cleanupLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-stop:
			return
		}
	}
}

// Stop stops the cleanup loop and waits for it to exit. Safe to call more
// than once and without a prior StartCleanup.
func (s *Server) Stop() {
	s.cleanupMu.Lock()
	stop, done := s.cleanupStop, s.cleanupDone
	s.cleanupStop, s.cleanupDone = nil, nil
	s.cleanupMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
