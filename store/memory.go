package store

import (
	"sort"
	"sync"

	"github.com/stevemurr/simple-item-server/item"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
	seq   uint64
}

// entry remembers when a key was first inserted so List can keep order.
type entry struct {
	item item.Item
	seq  uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]entry)}
}

func (m *MemoryStore) Get(id string) (item.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[id]
	if !ok {
		return item.Item{}, false, nil
	}
	return e.item.Clone(), true, nil
}

func (m *MemoryStore) Set(id string, it item.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		m.seq++
		e.seq = m.seq
	}
	e.item = it.Clone()
	m.items[id] = e
	return nil
}

func (m *MemoryStore) Has(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m *MemoryStore) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[id]; !exists {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *MemoryStore) List() ([]item.Item, error) {
	m.mu.RLock()
	entries := make([]entry, 0, len(m.items))
	for _, e := range m.items {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	result := make([]item.Item, len(entries))
	for i, e := range entries {
		result[i] = e.item.Clone()
	}
	return result, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]entry)
	return nil
}

func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

var _ Store = (*MemoryStore)(nil)
