package journal

import (
	"slices"
	"sync"
)

// MemoryStore is an in-memory journal for tests and short-lived processes.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	seq     int64
	closed  bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.seq++
	rec.Sequence = m.seq
	rec.At = rec.At.UTC()
	m.records = append(m.records, rec)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(registry string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := []Record{}
	for _, rec := range m.records {
		if registry == "" || rec.Registry == registry {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Registries implements Store.
func (m *MemoryStore) Registries() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	names := []string{}
	for _, rec := range m.records {
		if !slices.Contains(names, rec.Registry) {
			names = append(names, rec.Registry)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(registry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.records = slices.DeleteFunc(m.records, func(rec Record) bool {
		return rec.Registry == registry
	})
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}
