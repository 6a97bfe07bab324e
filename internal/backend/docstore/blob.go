package docstore

import (
	"context"
	"errors"
	"sync"
)

// ErrBlobNotFound is returned by Blob.Get when nothing has been stored yet.
var ErrBlobNotFound = errors.New("blob not found")

// Blob is a single opaque object holding the board document.
type Blob interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
}

// MemoryBlob keeps the document in memory. It backs the "memory" backend and
// tests.
type MemoryBlob struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{}
}

func (m *MemoryBlob) Get(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrBlobNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryBlob) Put(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	return nil
}
