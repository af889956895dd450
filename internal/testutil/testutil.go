// Package testutil provides a controllable clock, a predictable token
// generator and a silent logger for tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// MockTime provides a controllable time source for deterministic testing.
// It is safe for concurrent use.
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// SequenceGenerator returns predictable hex strings: the n-th call yields
// the counter n zero-padded to the requested length. Useful to assert on
// exact identifiers.
type SequenceGenerator struct {
	mu    sync.Mutex
	count int
	Err   error // returned instead of a value when set
}

// RandomHex returns the next value in the sequence as 2n hex characters
func (g *SequenceGenerator) RandomHex(n int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.count++
	s := fmt.Sprintf("%x", g.count)
	return strings.Repeat("0", 2*n-len(s)) + s, nil
}

// DiscardLogger returns a logger that drops all output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
