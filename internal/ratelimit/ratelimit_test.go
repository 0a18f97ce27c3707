package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyed_IndependentBudgets(t *testing.T) {
	k := NewKeyed(60, 1)

	if !k.Get("ethereum").Allow() {
		t.Fatal("first call on ethereum should be allowed")
	}
	if k.Get("ethereum").Allow() {
		t.Fatal("second immediate call on ethereum should be limited")
	}
	if !k.Get("arbitrum").Allow() {
		t.Fatal("arbitrum must not share ethereum's budget")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewWithBurst(1, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail once the context deadline is shorter than the refill")
	}
}

func TestNewWithBurst_ZeroRateIsUnlimited(t *testing.T) {
	l := NewWithBurst(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("call %d limited", i)
		}
	}
}
