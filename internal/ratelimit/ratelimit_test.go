package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
		{
			name:     "single call within burst",
			rps:      1,
			burst:    1,
			calls:    1,
			wantPass: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("window:7") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_WaitPacesCalls(t *testing.T) {
	rl := New(10, 1) // 10 rps, burst of 1
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// First call should succeed immediately
	start := time.Now()
	if err := rl.Wait(ctx, "window:7"); err != nil {
		t.Errorf("first Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}

	// Second call should wait ~100ms (1/10 rps)
	start = time.Now()
	if err := rl.Wait(ctx, "window:7"); err != nil {
		t.Errorf("second Wait() failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1) // 1 call per 10 seconds
	defer rl.Stop()

	// Exhaust the burst
	rl.Allow("window:7")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "window:7"); err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}

func TestKeyedRateLimiter_WindowsAreIndependent(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// Exhaust the budget for one window
	rl.Allow("window:1")
	if rl.Allow("window:1") {
		t.Error("window:1 should be exhausted")
	}

	// Restoring into another window is not affected
	if !rl.Allow("window:2") {
		t.Error("window:2 should be independent and allowed")
	}
}

func TestKeyedRateLimiter_ConcurrentKeys(t *testing.T) {
	rl := New(100, 1)
	defer rl.Stop()

	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func(n int) {
			key := fmt.Sprintf("window:%d", n)
			done <- rl.Allow(key)
		}(i)
	}

	for i := 0; i < 8; i++ {
		if !<-done {
			t.Error("fresh key should have burst available")
		}
	}
}
