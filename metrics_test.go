package goOverlay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("expected an empty snapshot when disabled")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSuspensionApplied)
	m.Inc(MetricSuspensionApplied)
	m.Add(MetricSuspensionApplied, 3)
	m.Add(MetricSuspensionApplied, 0)

	if got := m.Value(MetricSuspensionApplied); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricActivityAppended)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricActivityAppended); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		3 * time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricLoginLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("expected no histogram for a counter")
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("expected the latency histogram to be left out of counters")
	}
}

func TestMetricsSnapshotWithoutLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricLoginLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricLoginLatency]; ok {
		t.Fatal("expected no histogram when latency is disabled")
	}
}

func TestEngineRecordsLoginLatency(t *testing.T) {
	te := buildTestEngine(t, func(b *Builder) { b.WithLatencyHistograms(true) })
	te.dir.add("a@example.com", "pw", identity.Ref{ID: "1"}, "A", "member")

	if _, err := te.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var total uint64
	for _, n := range te.MetricsSnapshot().Histograms[MetricLoginLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected 1 latency observation, got %d", total)
	}
}
