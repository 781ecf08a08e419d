// internal/app/store/blob/memory.go
package blob

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	fail    error
}

// NewMemoryStore returns an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

// FailPuts makes every Put return err until cleared with nil. Test hook.
func (m *MemoryStore) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// PutCount reports how many Put calls reached the store.
func (m *MemoryStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Object returns the stored bytes for a storage id.
func (m *MemoryStore) Object(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[id]
	return b, ok
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (PutResult, error) {
	m.mu.Lock()
	m.puts++
	fail := m.fail
	m.mu.Unlock()
	if fail != nil {
		return PutResult{}, fail
	}
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return PutResult{}, err
	}
	key := uuid.NewString()

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return PutResult{
		URL:         "mem://blobs/" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
		StorageID:   key,
	}, nil
}
