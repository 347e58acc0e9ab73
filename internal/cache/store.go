package cache

import (
	"context"
	"sort"
	"sync"
)

// UpdateFunc computes the replacement for a topic's entry. exists is false
// when the topic has no entry yet. Returning changed=false leaves the stored
// entry untouched.
type UpdateFunc func(current Entry, exists bool) (next Entry, changed bool, err error)

// Store persists topic entries. Update must apply fn as one atomic
// read-modify-write: concurrent readers observe either the old or the new
// entry, never a mix.
type Store interface {
	Load(ctx context.Context, topic string) (Entry, bool, error)
	Update(ctx context.Context, topic string, fn UpdateFunc) (Entry, error)
	Topics(ctx context.Context) ([]string, error)
}

// MemoryStore keeps entries in process memory. Entries are replaced whole,
// never mutated in place.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Load(ctx context.Context, topic string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[topic]
	return e.Clone(), ok, nil
}

func (m *MemoryStore) Update(ctx context.Context, topic string, fn UpdateFunc) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.entries[topic]
	next, changed, err := fn(cur.Clone(), ok)
	if err != nil {
		return Entry{}, err
	}
	if !changed {
		return cur.Clone(), nil
	}
	m.entries[topic] = next.Clone()
	return next, nil
}

func (m *MemoryStore) Topics(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for t := range m.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
