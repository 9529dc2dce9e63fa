package main

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[int]time.Duration{0: 1, 50: 5, 95: 9, 100: 10}
	for p, want := range cases {
		if got := percentile(samples, p); got != want {
			t.Fatalf("p%d: expected %v, got %v", p, want, got)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Fatal("expected zero for no samples")
	}
}

func TestRunPhaseCountsOpsAndFailures(t *testing.T) {
	calls := 0
	p := phase{name: "x", op: func(context.Context, *rand.Rand) error {
		calls++
		if calls%4 == 0 {
			return errors.New("boom")
		}
		return nil
	}}
	stats := runPhase(context.Background(), p, 40, 1)
	if stats.ops != 40 || stats.failures != 10 {
		t.Fatalf("expected 40 ops and 10 failures, got %d and %d", stats.ops, stats.failures)
	}
}
