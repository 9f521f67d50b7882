package blobstore

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps blobs in a map. It backs tests and throwaway collections.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	puts  atomic.Int64
}

var _ BlobStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return BytesBlob(data), nil
}

// Put stores a private copy of data, so callers may reuse their buffer.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := slices.Clone(data)
	if snapshot == nil {
		snapshot = []byte{}
	}
	m.mu.Lock()
	m.blobs[name] = snapshot
	m.mu.Unlock()
	m.puts.Add(1)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Puts counts successful writes. Tests use it to assert that a no-op
// mutation did not persist.
func (m *MemoryStore) Puts() int {
	return int(m.puts.Load())
}

// BytesBlob adapts an immutable byte slice to Blob.
type BytesBlob []byte

func (b BytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b BytesBlob) Close() error           { return nil }
func (b BytesBlob) Size() int64            { return int64(len(b)) }
func (b BytesBlob) Bytes() ([]byte, error) { return b, nil }
