package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemStore is a thread-safe in-memory key-value map mirrored to a Persister.
// Values are held as their JSON encoding.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	persister Persister
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string][]byte, p Persister) *MemStore {
	if initialData == nil {
		initialData = make(map[string][]byte)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// Open loads everything the persister holds and returns a store on top of it.
func Open(p Persister) (*MemStore, error) {
	data, err := p.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return NewMemStore(data, p), nil
}

var _ KV = (*MemStore)(nil)

func (m *MemStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set encodes val and writes it through to the persister before returning.
// When the write fails the previous value is restored so memory never runs
// ahead of disk.
func (m *MemStore) Set(key string, val any) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	bytes, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.data[key]
	m.data[key] = bytes

	if m.persister != nil {
		if err := m.persister.Save(key, bytes); err != nil {
			if existed {
				m.data[key] = prev
			} else {
				delete(m.data, key)
			}
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.data[key]
	if !existed {
		return nil
	}
	delete(m.data, key)

	if m.persister != nil {
		if err := m.persister.Remove(key); err != nil {
			m.data[key] = prev
			return fmt.Errorf("persist delete %s: %w", key, err)
		}
	}
	return nil
}

// Keys returns the stored keys in lexical order.
func (m *MemStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for k := range m.data {
		list = append(list, k)
	}
	sort.Strings(list)
	return list, nil
}
