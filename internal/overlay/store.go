// Package overlay holds the persisted collections behind the account overlay:
// suspension records, deletion markers, the activity ledger, stored session
// credentials and login streaks.
//
// Each collection is one JSON blob under its own key in a [kv.Store] and is
// rewritten whole on every mutation. Nothing in this package locks; callers
// serialise read-modify-write cycles.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goOverlay/kv"
)

// Collection names. The persisted key is the configured prefix plus the name.
const (
	CollectionSuspensions = "suspensions"
	CollectionDeleted     = "deleted"
	CollectionActivity    = "activity"
	CollectionSession     = "session"
	CollectionStreaks     = "streaks"
)

// Hooks receives notifications the engine turns into metrics. Any field may be
// nil.
type Hooks struct {
	OnCorrupt    func(collection string)
	OnReadError  func(collection string)
	OnWriteError func(collection string)
	OnPrune      func(collection string, n int)
}

func (h Hooks) corrupt(c string) {
	if h.OnCorrupt != nil {
		h.OnCorrupt(c)
	}
}

func (h Hooks) readError(c string) {
	if h.OnReadError != nil {
		h.OnReadError(c)
	}
}

func (h Hooks) writeError(c string) {
	if h.OnWriteError != nil {
		h.OnWriteError(c)
	}
}

func (h Hooks) prune(c string, n int) {
	if h.OnPrune != nil && n > 0 {
		h.OnPrune(c, n)
	}
}

// Store maps collections onto a key-value backend.
type Store struct {
	backend kv.Store
	prefix  string
	logger  *slog.Logger
	hooks   Hooks
}

// NewStore wires a backend. A nil logger falls back to slog.Default.
func NewStore(backend kv.Store, prefix string, logger *slog.Logger, hooks Hooks) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		prefix:  prefix,
		logger:  logger,
		hooks:   hooks,
	}
}

// Key returns the backend key of a collection.
func (s *Store) Key(collection string) string {
	return s.prefix + collection
}

// load decodes a collection for reading. Missing, unreadable and unparseable
// blobs all yield the zero value: the overlay is advisory and must never block
// a caller on its own storage.
func load[T any](ctx context.Context, s *Store, collection string) T {
	out, err := loadForWrite[T](ctx, s, collection)
	if err != nil {
		s.logger.Warn("overlay: read failed, using empty collection",
			"collection", collection, "error", err)
		var zero T
		return zero
	}
	return out
}

// loadForWrite decodes a collection that is about to be rewritten whole. A
// missing or unparseable blob yields the zero value; a backend read failure is
// returned so the caller does not overwrite records it could not see.
func loadForWrite[T any](ctx context.Context, s *Store, collection string) (T, error) {
	var out T
	data, err := s.backend.Get(ctx, s.Key(collection))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return out, nil
		}
		s.hooks.readError(collection)
		return out, fmt.Errorf("overlay: read %s: %w", collection, err)
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("overlay: collection corrupted, starting fresh",
			"collection", collection, "key", s.Key(collection), "error", err)
		s.hooks.corrupt(collection)
		var zero T
		return zero, nil
	}
	return out, nil
}

func (s *Store) save(ctx context.Context, collection string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("overlay: encode %s: %w", collection, err)
	}
	if err := s.backend.Set(ctx, s.Key(collection), data); err != nil {
		s.hooks.writeError(collection)
		return fmt.Errorf("overlay: write %s: %w", collection, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, collection string) error {
	if err := s.backend.Delete(ctx, s.Key(collection)); err != nil {
		s.hooks.writeError(collection)
		return fmt.Errorf("overlay: delete %s: %w", collection, err)
	}
	return nil
}

// saveBestEffort persists a side-effect write whose failure must not surface.
func (s *Store) saveBestEffort(ctx context.Context, collection string, v any) {
	if err := s.save(ctx, collection, v); err != nil {
		s.logger.Warn("overlay: best-effort write failed", "collection", collection, "error", err)
	}
}
