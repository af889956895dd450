package server

import (
	"time"

	"github.com/giantswarm/mcp-oauth-gate/security"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// TokenGenerator supplies random hex strings of n bytes (2n characters)
type TokenGenerator interface {
	RandomHex(n int) (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type cryptoGenerator struct{}

func (cryptoGenerator) RandomHex(n int) (string, error) { return security.RandomHex(n) }

// SetClock replaces the time source. Intended for tests.
func (s *Server) SetClock(clock Clock) {
	if clock == nil {
		clock = systemClock{}
	}
	s.clock = clock
}

// SetTokenGenerator replaces the random source. Intended for tests.
func (s *Server) SetTokenGenerator(gen TokenGenerator) {
	if gen == nil {
		gen = cryptoGenerator{}
	}
	s.tokens = gen
}
