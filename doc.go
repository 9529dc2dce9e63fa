// Package goOverlay adds account-lifecycle state on top of a remote user
// directory that has no notion of it: temporary suspension, soft deletion, a
// short-lived activity ledger and a session guard that enforces both at login.
//
// The directory stays the system of record for profiles and passwords. The
// overlay keeps its own collections in a key-value backend (see package kv)
// and never writes lifecycle state back to the directory.
//
// # Collections
//
// Each collection is one JSON value under a prefixed key. Reads are
// forgiving: a missing, unreadable or corrupt value reads as an empty
// collection and the problem is logged and counted. Writes of admin
// mutations report failures as ErrStoreUnavailable.
//
//   - suspensions: identity to expiry, 24h by default, expired lazily on read
//   - deleted: identities hidden from member listings
//   - activity: append-only events, pruned to the retention window on write
//   - streaks: consecutive-day login counters
//   - session: the credentials RestoreSession picks up
//
// # Identities
//
// Directory records may carry the identity as "id", "userId" or both. Package
// identity reconciles them so one account never appears under two keys.
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Overlay updates are serialized
// per Engine; several processes sharing one backend are not coordinated and
// the last write wins.
package goOverlay
