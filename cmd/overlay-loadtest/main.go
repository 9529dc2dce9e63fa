// Command overlay-loadtest drives concurrent suspension checks, suspensions
// and activity appends through one engine and reports latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/kv"
)

type phase struct {
	name string
	op   func(ctx context.Context, r *rand.Rand) error
}

func main() {
	var (
		members     = flag.Int("members", 1000, "number of member identities")
		suspended   = flag.Int("suspended", 100, "members suspended before the run")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		memory      = flag.Bool("memory", false, "use the in-process store instead of redis")
	)
	flag.Parse()

	if *members <= 0 || *concurrency <= 0 || *ops <= 0 || *suspended < 0 || *suspended > *members {
		fmt.Fprintln(os.Stderr, "members, concurrency and ops must be > 0 and suspended within [0, members]")
		os.Exit(2)
	}

	store, cleanup, err := openStore(*redisAddr, *memory)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := goOverlay.New().
		WithStore(store).
		WithMetricsEnabled(true).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	ids := make([]identity.ID, *members)
	for i := range ids {
		ids[i] = identity.ID(strconv.Itoa(i + 1))
	}

	fmt.Printf("suspending %d of %d members...\n", *suspended, *members)
	startSeed := time.Now()
	for _, id := range ids[:*suspended] {
		if _, err := engine.Suspend(ctx, id, "load test"); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	pick := func(r *rand.Rand) identity.ID { return ids[r.Intn(len(ids))] }
	phases := []phase{
		{"check", func(ctx context.Context, r *rand.Rand) error {
			engine.CheckSuspension(ctx, pick(r))
			return nil
		}},
		{"suspend", func(ctx context.Context, r *rand.Rand) error {
			id := pick(r)
			if r.Intn(2) == 0 {
				_, err := engine.Suspend(ctx, id, "load test")
				return err
			}
			return engine.EndSuspension(ctx, id)
		}},
		{"activity", func(ctx context.Context, r *rand.Rand) error {
			_, err := engine.RecordActivity(ctx, pick(r), "load_test", "synthetic event")
			return err
		}},
	}

	results := make([]phaseStats, len(phases))
	for i, p := range phases {
		results[i] = runPhase(ctx, p, *ops, *concurrency)
	}

	fmt.Println("---- results ----")
	for i, p := range phases {
		printStats(p.name, results[i])
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("corruptions=%d write_failures=%d activity_pruned=%d\n",
		snap.Counters[goOverlay.MetricStoreCorruption],
		snap.Counters[goOverlay.MetricStoreWriteFailure],
		snap.Counters[goOverlay.MetricActivityPruned])
}

func openStore(addr string, memory bool) (kv.Store, func(), error) {
	if memory {
		fmt.Println("using in-process store")
		return kv.NewMemoryStore(), func() {}, nil
	}
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return kv.NewRedisStore(client, "loadtest:"), func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	fmt.Printf("using redis at %s\n", addr)
	return kv.NewRedisStore(client, "loadtest:"), func() { _ = client.Close() }, nil
}

func runPhase(ctx context.Context, p phase, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := p.op(ctx, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
