// Package kv defines the key-value port the overlay persists through, plus
// adapters for process memory, a directory of JSON files, SQLite and Redis.
//
// Values are opaque byte blobs. The overlay writes whole collections under a
// handful of fixed keys, so adapters only need point reads and writes.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps backend failures (I/O, network, driver).
	ErrUnavailable = errors.New("kv: backend unavailable")
	// ErrInvalidKey is returned for keys an adapter cannot represent.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Store is the persistence port consumed by the overlay.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
