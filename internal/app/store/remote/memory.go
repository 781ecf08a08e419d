// internal/app/store/remote/memory.go
package remote

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store backed by a JSON tree. It is the backend
// for tests and for local development (backend=memory). Semantics match
// the Firestore store: one dispatch goroutine delivers every snapshot
// callback, an initial snapshot is delivered on subscribe, and writes are
// visible to affected listeners in write order.
type Memory struct {
	mu      sync.Mutex
	tree    map[string]any
	subs    map[int]*memSub
	nextID  int
	clock   func() time.Time
	closed  bool
	deliver chan func()
	stopped chan struct{}

	writeFaults map[string]error
	readFaults  map[string]error
}

type memSub struct {
	path      string
	fn        SnapshotFunc
	cancelled atomic.Bool
}

// NewMemory builds an empty in-memory store and starts its dispatcher.
// Call Close when done.
func NewMemory() *Memory {
	m := &Memory{
		tree:        map[string]any{},
		subs:        map[int]*memSub{},
		clock:       time.Now,
		deliver:     make(chan func(), 256),
		stopped:     make(chan struct{}),
		writeFaults: map[string]error{},
		readFaults:  map[string]error{},
	}
	go m.dispatch()
	return m
}

func (m *Memory) dispatch() {
	defer close(m.stopped)
	for fn := range m.deliver {
		fn()
	}
}

// Close stops the dispatcher and drops all listeners. Pending deliveries
// run to completion first.
func (m *Memory) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, s := range m.subs {
		s.cancelled.Store(true)
	}
	m.subs = map[int]*memSub{}
	m.mu.Unlock()
	close(m.deliver)
	<-m.stopped
}

// SetClock overrides the clock used for server timestamps. Test hook.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// FailWrites makes every Write under prefix return err. A nil err clears
// the fault. Test hook for simulating transport failures.
func (m *Memory) FailWrites(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.writeFaults, prefix)
		return
	}
	m.writeFaults[prefix] = err
}

// FailReads makes every subscription under prefix deliver err instead of
// snapshots. A nil err clears the fault. Test hook.
func (m *Memory) FailReads(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readFaults, prefix)
		return
	}
	m.readFaults[prefix] = err
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, path string, fn SnapshotFunc) (func(), error) {
	if _, err := SplitPath(path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	sub := &memSub{path: path, fn: fn}
	m.subs[id] = sub

	// Initial delivery, queued while the lock is held so it precedes any
	// later write to the same path.
	if err := m.readFaultFor(path); err != nil {
		m.enqueueLocked(sub, Snapshot{Path: path}, err)
	} else {
		m.enqueueLocked(sub, m.snapshotLocked(path), nil)
	}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.cancelled.Store(true)
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

// Write implements Store. A nil value deletes the subtree at path and
// prunes any branches left empty.
func (m *Memory) Write(ctx context.Context, path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for prefix, ferr := range m.writeFaults {
		if pathHasPrefix(path, prefix) {
			return ferr
		}
	}

	if value == nil {
		deleteAt(m.tree, segs)
	} else {
		normalized, err := m.normalize(value)
		if err != nil {
			return err
		}
		setAt(m.tree, segs, normalized)
	}

	// Notify every listener whose subtree overlaps the written path.
	for _, sub := range m.subs {
		if !pathsOverlap(sub.path, path) {
			continue
		}
		if ferr := m.readFaultFor(sub.path); ferr != nil {
			m.enqueueLocked(sub, Snapshot{Path: sub.path}, ferr)
			continue
		}
		m.enqueueLocked(sub, m.snapshotLocked(sub.path), nil)
	}
	return nil
}

// GenerateKey implements Store.
func (m *Memory) GenerateKey(string) string {
	return uuid.NewString()
}

func (m *Memory) readFaultFor(path string) error {
	for prefix, err := range m.readFaults {
		if pathHasPrefix(path, prefix) {
			return err
		}
	}
	return nil
}

// enqueueLocked captures the delivery while m.mu is held, preserving
// write order, but runs it on the dispatch goroutine. Deliveries for
// cancelled subscriptions are dropped there; the dispatcher never takes
// m.mu, so a full queue only backpressures writers.
func (m *Memory) enqueueLocked(sub *memSub, snap Snapshot, err error) {
	m.deliver <- func() {
		if sub.cancelled.Load() {
			return
		}
		sub.fn(snap, err)
	}
}

func (m *Memory) snapshotLocked(path string) Snapshot {
	segs, _ := SplitPath(path)
	val, ok := getAt(m.tree, segs)
	if !ok {
		return Snapshot{Path: path}
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Exists: true, Data: raw}
}

// normalize round-trips value through JSON so the tree only ever holds
// plain decoded values, substituting server timestamps with the store's
// clock.
func (m *Memory) normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	now := m.clock().UnixMilli()
	return substituteTimestamps(decoded, now), nil
}

func substituteTimestamps(v any, now int64) any {
	if isServerTimestamp(v) {
		return now
	}
	if m, ok := v.(map[string]any); ok {
		for k, child := range m {
			m[k] = substituteTimestamps(child, now)
		}
	}
	return v
}

func setAt(tree map[string]any, segs []string, value any) {
	for _, seg := range segs[:len(segs)-1] {
		child, ok := tree[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			tree[seg] = child
		}
		tree = child
	}
	tree[segs[len(segs)-1]] = value
}

func getAt(tree map[string]any, segs []string) (any, bool) {
	var cur any = tree
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func deleteAt(tree map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(tree, segs[0])
		return
	}
	child, ok := tree[segs[0]].(map[string]any)
	if !ok {
		return
	}
	deleteAt(child, segs[1:])
	if len(child) == 0 {
		delete(tree, segs[0])
	}
}

func pathHasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// pathsOverlap reports whether a write to b is visible within a
// subscription to a (either path is an ancestor of the other).
func pathsOverlap(a, b string) bool {
	return pathHasPrefix(a, b) || pathHasPrefix(b, a)
}
