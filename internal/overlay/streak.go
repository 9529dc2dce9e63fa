package overlay

import (
	"context"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
)

const dayLayout = "2006-01-02"

// Streak counts consecutive calendar days with at least one login.
type Streak struct {
	Count     int    `json:"count"`
	LastLogin string `json:"lastLogin"`
}

// NextStreak applies a login on day today to prev. The first login starts at
// one, a login the day after the last one extends the run, a second login on
// the same day changes nothing and any longer gap restarts at one.
func NextStreak(prev Streak, today time.Time) Streak {
	day := today.Format(dayLayout)
	last, err := time.ParseInLocation(dayLayout, prev.LastLogin, today.Location())
	if err != nil || prev.Count <= 0 {
		return Streak{Count: 1, LastLogin: day}
	}

	current, _ := time.ParseInLocation(dayLayout, day, today.Location())
	switch {
	case current.Equal(last):
		return prev
	case last.AddDate(0, 0, 1).Equal(current):
		return Streak{Count: prev.Count + 1, LastLogin: day}
	default:
		return Streak{Count: 1, LastLogin: day}
	}
}

// Streaks keeps one counter per identity.
type Streaks struct {
	store *Store
	now   func() time.Time
}

// NewStreaks binds the counters to store.
func NewStreaks(store *Store, now func() time.Time) *Streaks {
	if now == nil {
		now = time.Now
	}
	return &Streaks{store: store, now: now}
}

// Record applies a login happening now and persists the result.
func (s *Streaks) Record(ctx context.Context, id identity.ID) (Streak, error) {
	all, err := loadForWrite[map[identity.ID]Streak](ctx, s.store, CollectionStreaks)
	if err != nil {
		return Streak{}, err
	}
	if all == nil {
		all = map[identity.ID]Streak{}
	}
	next := NextStreak(all[id], s.now())
	all[id] = next
	if err := s.store.save(ctx, CollectionStreaks, all); err != nil {
		return next, err
	}
	return next, nil
}

// Get returns the stored counter for id.
func (s *Streaks) Get(ctx context.Context, id identity.ID) Streak {
	return load[map[identity.ID]Streak](ctx, s.store, CollectionStreaks)[id]
}
