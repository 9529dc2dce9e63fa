package goOverlay

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goOverlay/internal/overlay"
	"github.com/MrEthical07/goOverlay/kv"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	store  kv.Store

	directory Directory
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the key-value backend. Without one the engine keeps its
// state in memory for the lifetime of the process.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithDirectory sets the remote user directory. Login, ListMembers and
// UpdateProfile fail with ErrDirectoryRequired without one.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Tests use it to move through suspension
// windows and retention periods.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}
	backend := b.store
	if backend == nil {
		logger.Warn("goOverlay: no store configured, overlay state will not survive restarts")
		backend = kv.NewMemoryStore()
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		directory: b.directory,
		logger:    logger,
		now:       now,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	// -------- OVERLAY COLLECTIONS --------
	store := overlay.NewStore(backend, cfg.Store.KeyPrefix, logger, overlay.Hooks{
		OnCorrupt:    func(string) { engine.metricInc(MetricStoreCorruption) },
		OnReadError:  func(string) { engine.metricInc(MetricStoreReadFailure) },
		OnWriteError: func(string) { engine.metricInc(MetricStoreWriteFailure) },
		OnPrune:      engine.onPrune,
	})
	engine.store = store
	engine.suspensions = overlay.NewSuspensions(store, cfg.Suspension.Duration, now)
	engine.deletions = overlay.NewDeletions(store)
	engine.ledger = overlay.NewLedger(store, cfg.Activity.Retention, cfg.Activity.MaxEvents, now)
	engine.streaks = overlay.NewStreaks(store, now)
	engine.credentials = overlay.NewCredentialStore(store)

	b.built = true

	return engine, nil
}
