package overlay

import (
	"context"

	"github.com/MrEthical07/goOverlay/identity"
)

// Deletions is the soft-delete marker set. Markers never expire and there is
// no operation that clears one.
type Deletions struct {
	store *Store
}

// NewDeletions binds the marker set to store.
func NewDeletions(store *Store) *Deletions {
	return &Deletions{store: store}
}

// Mark adds ids to the set and returns the ones that were not already there,
// in input order. Blank ids and repeats inside ids are skipped. Nothing is
// written when every id was already marked.
func (d *Deletions) Mark(ctx context.Context, ids ...identity.ID) ([]identity.ID, error) {
	current, err := loadForWrite[[]identity.ID](ctx, d.store, CollectionDeleted)
	if err != nil {
		return nil, err
	}
	seen := make(map[identity.ID]struct{}, len(current)+len(ids))
	marked := make([]identity.ID, 0, len(current)+len(ids))
	for _, id := range current {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		marked = append(marked, id)
	}

	var added []identity.ID
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		marked = append(marked, id)
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := d.store.save(ctx, CollectionDeleted, marked); err != nil {
		return nil, err
	}
	return added, nil
}

// Contains reports whether id is marked.
func (d *Deletions) Contains(ctx context.Context, id identity.ID) bool {
	if id.IsZero() {
		return false
	}
	for _, marked := range load[[]identity.ID](ctx, d.store, CollectionDeleted) {
		if marked == id {
			return true
		}
	}
	return false
}

// Set returns the marker set for bulk filtering.
func (d *Deletions) Set(ctx context.Context) map[identity.ID]struct{} {
	current := load[[]identity.ID](ctx, d.store, CollectionDeleted)
	out := make(map[identity.ID]struct{}, len(current))
	for _, id := range current {
		if !id.IsZero() {
			out[id] = struct{}{}
		}
	}
	return out
}
