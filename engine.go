package goOverlay

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/internal/overlay"
)

// Engine is the account-lifecycle overlay: suspension, soft deletion, the
// activity ledger and the session guard over one key-value backend and one
// remote directory.
//
// Every overlay read-modify-write runs under one mutex, so an Engine is safe
// for concurrent use within a process. Processes sharing a backend are not
// coordinated and the last writer wins.
type Engine struct {
	config    Config
	directory Directory
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	session     Session
	store       *overlay.Store
	suspensions *overlay.Suspensions
	deletions   *overlay.Deletions
	ledger      *overlay.Ledger
	streaks     *overlay.Streaks
	credentials *overlay.CredentialStore

	audit   *auditDispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher. The backend is owned by the
// caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// IsAdmin reports whether role may use admin operations.
func (e *Engine) IsAdmin(role string) bool {
	if e == nil {
		return false
	}
	role = strings.TrimSpace(role)
	for _, allowed := range e.config.Admin.Roles {
		if strings.EqualFold(allowed, role) {
			return true
		}
	}
	return false
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) onPrune(collection string, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	switch collection {
	case overlay.CollectionSuspensions:
		e.metrics.Add(MetricSuspensionExpired, uint64(n))
	case overlay.CollectionActivity:
		e.metrics.Add(MetricActivityPruned, uint64(n))
	}
}

// canonical trims id; the zero ID means "no identity".
func canonical(id identity.ID) identity.ID {
	return identity.ID(strings.TrimSpace(id.String()))
}
