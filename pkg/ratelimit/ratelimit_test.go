package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	limiter := NewLimiter(0, 0.5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with 0 RPS should not block")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10, 0) // 100ms interval
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("first wait should not block")
	}

	start = time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := time.Since(start); d < 80*time.Millisecond || d > 250*time.Millisecond {
		t.Errorf("expected ~100ms wait, got %v", d)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	limiter := NewLimiter(1, 0) // 1s interval
	_ = limiter.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLimiter_JitterClamped(t *testing.T) {
	if l := NewLimiter(5, 3); l.jitter != 1 {
		t.Errorf("expected jitter clamped to 1, got %v", l.jitter)
	}
	if l := NewLimiter(5, -1); l.jitter != 0 {
		t.Errorf("expected jitter clamped to 0, got %v", l.jitter)
	}
	if got := NewLimiter(4, 0).Interval(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms interval, got %v", got)
	}
}
