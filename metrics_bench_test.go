package goOverlay

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/kv"
)

func BenchmarkMetricsInc(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		b.Run("enabled="+strconv.FormatBool(enabled), func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: enabled})
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Inc(MetricSuspensionApplied)
				}
			})
		})
	}
}

func BenchmarkMetricsObserveLoginLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 120 * time.Millisecond
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricLoginLatency, d)
		}
	})
}

// Collections are rewritten whole on each mutation, so cost grows with the
// number of live suspensions.
func BenchmarkCheckSuspension(b *testing.B) {
	for _, live := range []int{10, 1000} {
		b.Run("live="+strconv.Itoa(live), func(b *testing.B) {
			engine, err := New().WithStore(kv.NewMemoryStore()).WithMetricsEnabled(true).Build()
			if err != nil {
				b.Fatalf("Build failed: %v", err)
			}
			defer engine.Close()

			ctx := context.Background()
			for i := 0; i < live; i++ {
				if _, err := engine.Suspend(ctx, identity.ID(strconv.Itoa(i)), "bench"); err != nil {
					b.Fatalf("Suspend failed: %v", err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				engine.CheckSuspension(ctx, identity.ID(strconv.Itoa(i%(2*live))))
			}
		})
	}
}

func BenchmarkRecordActivity(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Activity.MaxEvents = 500
	engine, err := New().WithConfig(cfg).WithStore(kv.NewMemoryStore()).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.RecordActivity(ctx, "42", ActivityLogin, "Logged in"); err != nil {
			b.Fatalf("RecordActivity failed: %v", err)
		}
	}
}
