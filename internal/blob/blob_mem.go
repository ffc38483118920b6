package blob

import (
	"context"
	"sync"
	"time"
)

type memBlob struct {
	data        []byte
	contentType string
	expiresAt   time.Time
}

// MemStore is an in-process Store used for dry runs and tests.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string]*memBlob
	puts  int
	now   func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		blobs: make(map[string]*memBlob),
		now:   time.Now,
	}
}

func (m *MemStore) Put(ctx context.Context, params *PutParams) (*Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	address := ContentAddress(params.Data)
	expiresAt := m.now().Add(params.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if b, ok := m.blobs[address]; ok {
		if expiresAt.After(b.expiresAt) {
			b.expiresAt = expiresAt
		}
	} else {
		data := make([]byte, len(params.Data))
		copy(data, params.Data)
		m.blobs[address] = &memBlob{data: data, contentType: params.ContentType, expiresAt: expiresAt}
	}

	return &Ref{ContentID: "mem:" + address, ContentAddress: address}, nil
}

// Get returns the bytes stored under a content address.
func (m *MemStore) Get(address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[address]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return b.data, nil
}

// Len returns the number of distinct blobs
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Puts returns the number of Put calls
func (m *MemStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
