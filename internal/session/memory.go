package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memItem
}

type memItem struct {
	data    Data
	expires time.Time
}

// NewMemoryStore constructs an empty store. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: map[string]memItem{}}
}

func (m *MemoryStore) Load(_ context.Context, id string) (Data, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return Data{}, false, nil
	}
	now := m.now()
	if m.ttl > 0 {
		if now.After(it.expires) {
			delete(m.items, id)
			return Data{}, false, nil
		}
		it.expires = now.Add(m.ttl)
		m.items[id] = it
	}
	return it.data, true, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, d Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = memItem{data: d, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}
