package state

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps encoded states in memory. Records still pass through
// Encode and Decode so behaviour matches the durable backends.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Save(ctx context.Context, s *SessionState) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.ID] = data
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*SessionState, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*SessionState, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	states := make([]*SessionState, 0, len(ids))
	for _, id := range ids {
		s, err := m.Load(ctx, id)
		if err != nil {
			continue
		}
		states = append(states, s)
	}
	return states, nil
}

// Put stores raw bytes under id without validation.
func (m *MemoryStore) Put(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = data
}

func (m *MemoryStore) Close() error { return nil }
