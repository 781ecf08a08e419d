// Package remote defines the hierarchical keyed store that every live
// component (membership, materials, comments, chat) is built on, and its
// two implementations: a Firestore-backed store for production and an
// in-memory store for tests and local development.
//
// The store exposes exactly three primitives:
//
//	Subscribe(path) → stream of snapshots, with cancel
//	Write(path, value)
//	GenerateKey(path) → collision-free id
//
// A snapshot is the JSON subtree rooted at the subscribed path: an object
// of children for branch nodes, a scalar for leaves. Every implementation
// delivers all snapshot callbacks sequentially from a single dispatch
// queue, so consumers observe one logical timeline and never see two
// callbacks run concurrently.
//
// Subscriptions are long-lived resources. Every Subscribe must be paired
// with a call to the returned cancel function once the consuming view is
// done, or the listener table grows without bound. Cancel is idempotent,
// and any delivery queued for a cancelled subscription is dropped.
package remote

import (
	"encoding/json"
	"errors"
	"strings"

	"context"
)

// Snapshot is a point-in-time view of the subtree at Path.
type Snapshot struct {
	Path   string
	Exists bool
	Data   json.RawMessage
}

// Decode unmarshals the snapshot subtree into v. When the subtree does
// not exist, v is left untouched.
func (s Snapshot) Decode(v any) error {
	if !s.Exists || len(s.Data) == 0 {
		return nil
	}
	return json.Unmarshal(s.Data, v)
}

// SnapshotFunc receives either a snapshot or a read error, never both.
type SnapshotFunc func(Snapshot, error)

// Store is the remote structured store contract.
type Store interface {
	// Subscribe registers fn for the subtree at path. fn is called once
	// with the current state and again after every change beneath path,
	// always from the store's single dispatch queue. The returned cancel
	// releases the listener; it is safe to call more than once.
	Subscribe(ctx context.Context, path string, fn SnapshotFunc) (cancel func(), err error)

	// Write replaces the subtree at path with value. A nil value deletes
	// the subtree. Write does not retry; transport failures surface to
	// the caller.
	Write(ctx context.Context, path string, value any) error

	// GenerateKey returns a new child key for path that no concurrent
	// caller can also obtain, so concurrent creates never overwrite each
	// other.
	GenerateKey(path string) string
}

// serverTimestampKey is the wire marker replaced by the store's own clock
// at write time.
const serverTimestampKey = ".sv"

// ServerTimestamp marks a value the store fills with its own clock (unix
// milliseconds) when the write is applied. Use it for fields that must be
// ordered consistently across writers, such as chat message times.
var ServerTimestamp = json.RawMessage(`{"` + serverTimestampKey + `":"timestamp"}`)

// ErrClosed is returned by operations on a store that has been shut down.
var ErrClosed = errors.New("remote store is closed")

// SplitPath breaks a slash-separated path into segments, rejecting empty
// segments.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, errors.New("empty path")
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return nil, errors.New("path has empty segment: " + path)
		}
	}
	return segs, nil
}

// JoinPath assembles path segments into the canonical slash form.
func JoinPath(segs ...string) string {
	return strings.Join(segs, "/")
}

// isServerTimestamp reports whether a decoded JSON value is the
// ServerTimestamp marker.
func isServerTimestamp(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	tag, ok := m[serverTimestampKey].(string)
	return ok && tag == "timestamp"
}
