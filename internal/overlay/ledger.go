package overlay

import (
	"context"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/google/uuid"
)

// Event is one immutable ledger entry.
type Event struct {
	ID          string      `json:"id"`
	UserID      identity.ID `json:"userId"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Ledger is the append-only activity log, stored most recent first. Events
// older than the retention window are dropped on every append; reads never
// prune, so an idle ledger may hold stale entries until the next write.
type Ledger struct {
	store     *Store
	retention time.Duration
	maxEvents int
	now       func() time.Time
	newID     func() string
}

// NewLedger binds the ledger to store. maxEvents <= 0 disables the size cap.
func NewLedger(store *Store, retention time.Duration, maxEvents int, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:     store,
		retention: retention,
		maxEvents: maxEvents,
		now:       now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Append stamps ev with a fresh id and the current time, prepends it, prunes
// the window and persists. The populated event is returned even when the
// write fails.
func (l *Ledger) Append(ctx context.Context, ev Event) (Event, error) {
	now := l.now()
	ev.ID = l.newID()
	ev.Timestamp = now.UTC()

	// The ledger is a rolling 24h window; an unreadable one restarts from
	// this event rather than failing the append.
	events := load[[]Event](ctx, l.store, CollectionActivity)
	cutoff := now.Add(-l.retention)

	kept := make([]Event, 0, len(events)+1)
	kept = append(kept, ev)
	pruned := 0
	for _, existing := range events {
		if existing.Timestamp.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, existing)
	}
	if l.maxEvents > 0 && len(kept) > l.maxEvents {
		pruned += len(kept) - l.maxEvents
		kept = kept[:l.maxEvents]
	}
	if pruned > 0 {
		l.store.hooks.prune(CollectionActivity, pruned)
		l.store.logger.Debug("overlay: activity pruned", "count", pruned)
	}

	if err := l.store.save(ctx, CollectionActivity, kept); err != nil {
		return ev, err
	}
	return ev, nil
}

// Query returns the retained events for id in stored order.
func (l *Ledger) Query(ctx context.Context, id identity.ID) []Event {
	if id.IsZero() {
		return nil
	}
	var out []Event
	for _, ev := range load[[]Event](ctx, l.store, CollectionActivity) {
		if ev.UserID == id {
			out = append(out, ev)
		}
	}
	return out
}

// Recent returns up to limit retained events across all identities. limit <= 0
// returns everything.
func (l *Ledger) Recent(ctx context.Context, limit int) []Event {
	events := load[[]Event](ctx, l.store, CollectionActivity)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}
