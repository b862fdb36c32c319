package registrar

import (
	"iter"
	"sync"
)

// ReadGuard holds a registry's read lock. Other readers may proceed
// concurrently; writers, including entry releases, wait until Unlock.
type ReadGuard[T any] struct {
	c     *core[T]
	write bool
	once  sync.Once
}

// Unlock releases the lock. Further calls do nothing. The guard must not be
// used after Unlock.
func (g *ReadGuard[T]) Unlock() {
	g.once.Do(func() {
		if g.write {
			g.c.mu.Unlock()
		} else {
			g.c.mu.RUnlock()
		}
	})
}

// All iterates over (id, value) pairs in ID order.
func (g *ReadGuard[T]) All() iter.Seq2[ID, T] {
	return g.c.slots.All()
}

// Get returns the value stored under id.
func (g *ReadGuard[T]) Get(id ID) (T, bool) {
	return g.c.slots.Get(id)
}

// IDs returns the live IDs in ascending order.
func (g *ReadGuard[T]) IDs() []ID {
	return g.c.slots.Keys()
}

// Len returns the number of live entries.
func (g *ReadGuard[T]) Len() int {
	return g.c.slots.Len()
}

// WriteGuard holds a registry's write lock.
type WriteGuard[T any] struct {
	ReadGuard[T]
}

// Each calls fn with a pointer to every value in ID order.
func (g *WriteGuard[T]) Each(fn func(id ID, value *T)) {
	g.c.slots.Each(fn)
}

// Update runs fn on the value stored under id.
// It returns false if id is not live.
func (g *WriteGuard[T]) Update(id ID, fn func(*T)) bool {
	p := g.c.slots.Ptr(id)
	if p == nil {
		return false
	}
	fn(p)
	return true
}

// Set replaces the value stored under id.
// It returns false if id is not live.
func (g *WriteGuard[T]) Set(id ID, value T) bool {
	return g.Update(id, func(v *T) { *v = value })
}
