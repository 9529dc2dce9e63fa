package overlay

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
)

// SuspensionRecord is one live lockout.
type SuspensionRecord struct {
	UserID      identity.ID `json:"userId"`
	Reason      string      `json:"reason,omitempty"`
	SuspendedAt time.Time   `json:"suspendedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Remaining returns the lockout time left at now, never negative.
func (r SuspensionRecord) Remaining(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type suspensionSet map[identity.ID]SuspensionRecord

// Suspensions is the time-limited lockout collection. A record whose expiry is
// not after now is treated as absent and pruned by the next reader.
type Suspensions struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSuspensions binds the collection to store. ttl is the lockout length.
func NewSuspensions(store *Store, ttl time.Duration, now func() time.Time) *Suspensions {
	if now == nil {
		now = time.Now
	}
	return &Suspensions{store: store, ttl: ttl, now: now}
}

// Apply creates or replaces the record for id, restarting the window.
func (s *Suspensions) Apply(ctx context.Context, id identity.ID, reason string) (SuspensionRecord, error) {
	now := s.now()
	set, err := loadForWrite[suspensionSet](ctx, s.store, CollectionSuspensions)
	if err != nil {
		return SuspensionRecord{}, err
	}
	if set == nil {
		set = suspensionSet{}
	}
	s.pruneExpired(set, now)

	rec := SuspensionRecord{
		UserID:      id,
		Reason:      strings.TrimSpace(reason),
		SuspendedAt: now.UTC(),
		ExpiresAt:   now.Add(s.ttl).UTC(),
	}
	set[id] = rec
	if err := s.store.save(ctx, CollectionSuspensions, set); err != nil {
		return SuspensionRecord{}, err
	}
	return rec, nil
}

// Check returns the live record for id. An expired record is removed and
// reported as absent.
func (s *Suspensions) Check(ctx context.Context, id identity.ID) (SuspensionRecord, bool) {
	set := load[suspensionSet](ctx, s.store, CollectionSuspensions)
	rec, ok := set[id]
	if !ok {
		return SuspensionRecord{}, false
	}
	now := s.now()
	if rec.ExpiresAt.After(now) {
		return rec, true
	}

	delete(set, id)
	s.store.hooks.prune(CollectionSuspensions, 1)
	s.store.logger.Debug("overlay: suspension expired", "user_id", id.String())
	s.store.saveBestEffort(ctx, CollectionSuspensions, set)
	return SuspensionRecord{}, false
}

// Remove deletes any record for id and reports whether one existed.
func (s *Suspensions) Remove(ctx context.Context, id identity.ID) (bool, error) {
	set, err := loadForWrite[suspensionSet](ctx, s.store, CollectionSuspensions)
	if err != nil {
		return false, err
	}
	if _, ok := set[id]; !ok {
		return false, nil
	}
	delete(set, id)
	if err := s.store.save(ctx, CollectionSuspensions, set); err != nil {
		return true, err
	}
	return true, nil
}

// Live returns every unexpired record ordered by expiry, pruning the rest.
func (s *Suspensions) Live(ctx context.Context) []SuspensionRecord {
	set := load[suspensionSet](ctx, s.store, CollectionSuspensions)
	if len(set) == 0 {
		return nil
	}
	if s.pruneExpired(set, s.now()) > 0 {
		s.store.saveBestEffort(ctx, CollectionSuspensions, set)
	}

	out := make([]SuspensionRecord, 0, len(set))
	for _, rec := range set {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

func (s *Suspensions) pruneExpired(set suspensionSet, now time.Time) int {
	n := 0
	for id, rec := range set {
		if !rec.ExpiresAt.After(now) {
			delete(set, id)
			n++
		}
	}
	s.store.hooks.prune(CollectionSuspensions, n)
	return n
}

// SuspensionMessage renders the user-facing lockout notice. Hours are left out
// when zero and the reason sentence when reason is empty.
func SuspensionMessage(remaining time.Duration, reason string) string {
	if remaining < 0 {
		remaining = 0
	}
	hours := int(remaining / time.Hour)
	minutes := int((remaining % time.Hour) / time.Minute)

	var b strings.Builder
	b.WriteString("Your account is temporarily suspended. You can access your account again in ")
	if hours > 0 {
		b.WriteString(plural(hours, "hour"))
		b.WriteString(" and ")
	}
	b.WriteString(plural(minutes, "minute"))
	b.WriteByte('.')
	if r := strings.TrimSpace(reason); r != "" {
		b.WriteString(" Reason: ")
		b.WriteString(r)
	}
	return b.String()
}

func plural(n int, unit string) string {
	s := strconv.Itoa(n) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}
