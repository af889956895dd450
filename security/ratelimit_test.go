package security

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 20}, nil)
	defer rl.Stop()

	if rl == nil {
		t.Fatal("NewRateLimiter() returned nil")
	}
	if rl.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.burst)
	}
	if rl.maxEntries != defaultRateLimitMaxEntries {
		t.Errorf("maxEntries = %d, want %d", rl.maxEntries, defaultRateLimitMaxEntries)
	}
	if rl.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 5}, slog.Default())
	defer rl.Stop()

	identifier := "test-identifier"

	for i := 0; i < 5; i++ {
		if !rl.Allow(identifier) {
			t.Errorf("Allow() request %d should be allowed", i+1)
		}
	}

	if rl.Allow(identifier) {
		t.Error("Allow() should return false when rate limited")
	}
}

func TestRateLimiter_Allow_MultipleIdentifiers(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 2}, slog.Default())
	defer rl.Stop()

	id1 := "identifier-1"
	id2 := "identifier-2"

	for i := 0; i < 2; i++ {
		if !rl.Allow(id1) {
			t.Errorf("Allow(id1) request %d should be allowed", i+1)
		}
	}

	if rl.Allow(id1) {
		t.Error("Allow(id1) should return false when rate limited")
	}

	if !rl.Allow(id2) {
		t.Error("Allow(id2) should be allowed (different identifier)")
	}
}

func TestRateLimiter_Allow_RefillOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 2, Burst: 2}, slog.Default())
	defer rl.Stop()

	identifier := "test-identifier"

	for i := 0; i < 2; i++ {
		if !rl.Allow(identifier) {
			t.Errorf("Allow() request %d should be allowed", i+1)
		}
	}

	if rl.Allow(identifier) {
		t.Error("Allow() should return false when rate limited")
	}

	// one token refills every 500ms at 2 req/s
	time.Sleep(600 * time.Millisecond)

	if !rl.Allow(identifier) {
		t.Error("Allow() should be allowed after token refill")
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 1, MaxEntries: 2}, slog.Default())
	defer rl.Stop()

	rl.Allow("id-1")
	rl.Allow("id-2")
	rl.Allow("id-1") // id-2 becomes least recently used
	rl.Allow("id-3")

	stats := rl.GetStats()
	if stats.CurrentEntries != 2 {
		t.Errorf("CurrentEntries = %d, want 2", stats.CurrentEntries)
	}
	if stats.TotalEvictions != 1 {
		t.Errorf("TotalEvictions = %d, want 1", stats.TotalEvictions)
	}

	rl.mu.Lock()
	_, hasID1 := rl.limiters["id-1"]
	_, hasID2 := rl.limiters["id-2"]
	rl.mu.Unlock()
	if !hasID1 {
		t.Error("id-1 should have been kept")
	}
	if hasID2 {
		t.Error("id-2 should have been evicted")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 1, MaxEntries: -1}, slog.Default())
	defer rl.Stop()

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("id-%d", i))
	}

	stats := rl.GetStats()
	if stats.CurrentEntries != 50 {
		t.Errorf("CurrentEntries = %d, want 50", stats.CurrentEntries)
	}
	if stats.MaxEntries != 0 {
		t.Errorf("MaxEntries = %d, want 0 (unlimited)", stats.MaxEntries)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 20}, slog.Default())
	defer rl.Stop()

	rl.Allow("id-1")
	rl.Allow("id-2")
	rl.Allow("id-3")

	if got := rl.GetStats().CurrentEntries; got != 3 {
		t.Fatalf("CurrentEntries = %d, want 3", got)
	}

	time.Sleep(20 * time.Millisecond)
	rl.Cleanup(10 * time.Millisecond)

	stats := rl.GetStats()
	if stats.CurrentEntries != 0 {
		t.Errorf("CurrentEntries after cleanup = %d, want 0", stats.CurrentEntries)
	}
	if stats.TotalCleanups != 1 {
		t.Errorf("TotalCleanups = %d, want 1", stats.TotalCleanups)
	}
}

func TestRateLimiter_Cleanup_KeepsActive(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 20}, slog.Default())
	defer rl.Stop()

	rl.Allow("old")
	time.Sleep(50 * time.Millisecond)
	rl.Allow("recent")

	rl.Cleanup(25 * time.Millisecond)

	rl.mu.Lock()
	_, hasOld := rl.limiters["old"]
	_, hasRecent := rl.limiters["recent"]
	rl.mu.Unlock()

	if hasOld {
		t.Error("idle limiter should have been removed")
	}
	if !hasRecent {
		t.Error("active limiter should have been kept")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1000, Burst: 1000, MaxEntries: 5}, slog.Default())
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rl.Allow(fmt.Sprintf("id-%d", (id+j)%10))
			}
		}(i)
	}
	wg.Wait()

	stats := rl.GetStats()
	if stats.CurrentEntries > 5 {
		t.Errorf("CurrentEntries = %d, want <= 5", stats.CurrentEntries)
	}
	rl.mu.Lock()
	if rl.lruList.Len() != len(rl.limiters) {
		t.Errorf("lru list length %d != map length %d", rl.lruList.Len(), len(rl.limiters))
	}
	rl.mu.Unlock()
}

func TestRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10, Burst: 1}, slog.Default())

	rl.Stop()
	// second call must not panic
	rl.Stop()
}
