package goOverlay

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/internal/overlay"
)

const timeFormat = time.RFC3339

// RecordActivity appends an event for id. The ledger assigns the id and
// timestamp and drops events older than the retention window.
func (e *Engine) RecordActivity(ctx context.Context, id identity.ID, eventType, description string) (ActivityEvent, error) {
	if e == nil {
		return ActivityEvent{}, ErrEngineNotReady
	}
	id = canonical(id)
	if id.IsZero() {
		return ActivityEvent{}, ErrIdentityRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.ledger.Append(ctx, overlay.Event{
		UserID:      id,
		Type:        strings.TrimSpace(eventType),
		Description: description,
	})
	if err != nil {
		return ev, storeError(err)
	}
	e.metricInc(MetricActivityAppended)
	return ev, nil
}

// Activity returns the retained events of id, most recent first. Reading does
// not prune, so events past the retention window may appear until the next
// append.
func (e *Engine) Activity(ctx context.Context, id identity.ID) []ActivityEvent {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Query(ctx, canonical(id))
}

// RecentActivity returns up to limit events across all identities, most recent
// first. limit <= 0 returns everything retained.
func (e *Engine) RecentActivity(ctx context.Context, limit int) []ActivityEvent {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Recent(ctx, limit)
}

// SortActivity orders events newest first by timestamp, for callers merging
// ledgers or re-sorting after their own filtering.
func SortActivity(events []ActivityEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

// appendActivityLocked records a side effect of another operation. A failed
// write is logged and dropped; the ledger never blocks the operation itself.
func (e *Engine) appendActivityLocked(ctx context.Context, id identity.ID, eventType, description string) {
	if id.IsZero() {
		return
	}
	_, err := e.ledger.Append(ctx, overlay.Event{
		UserID:      id,
		Type:        eventType,
		Description: description,
	})
	if err != nil {
		e.logger.Warn("goOverlay: activity append failed",
			"user_id", id.String(), "type", eventType, "error", err)
		return
	}
	e.metricInc(MetricActivityAppended)
}
