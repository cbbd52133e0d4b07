package resilience

import (
	"context"
	"errors"
	"testing"
)

func TestLimiter_AllowRespectsBurst(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 2})

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Error("third call should be limited")
	}
}

func TestLimiter_TryCall(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	ctx := context.Background()

	ran := false
	if err := l.TryCall(ctx, func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("callback should run when a token is available")
	}

	err := l.TryCall(ctx, func(context.Context) error {
		t.Fatal("callback must not run when limited")
		return nil
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("got %v", err)
	}
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow() // drain the bucket

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should fail on a cancelled context")
	}
}
