package registrar

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"weak"

	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

type mapCore[K, V any] struct {
	mu       sync.RWMutex
	slots    *SlotTable[K, V]
	keys     map[ID]K
	ids      idCounter
	onRemove func(ID, K, V)
	opts     options
}

// Map is the keyed variant of Registry: callers choose the key of every
// slot instead of receiving an auto-assigned ID. Keys are unique; iteration
// is in key order. Registering a key that is already live fails with a
// *DuplicateKeyError so that each slot is owned by exactly one Entry.
//
// Copies of a Map share the same storage; create maps with NewMap or
// NewMapFunc.
type Map[K, V any] struct {
	c *mapCore[K, V]
}

// NewMap creates an empty map for naturally ordered keys.
func NewMap[K cmp.Ordered, V any](opts ...Option) Map[K, V] {
	return NewMapFunc[K, V](cmp.Compare[K], opts...)
}

// NewMapFunc creates an empty map ordered by compare, which must return a
// negative number, zero, or a positive number as a < b, a == b, a > b.
func NewMapFunc[K, V any](compare func(a, b K) int, opts ...Option) Map[K, V] {
	return Map[K, V]{c: &mapCore[K, V]{
		slots: NewSlotTable[K, V](compare),
		keys:  make(map[ID]K),
		opts:  buildOptions(opts),
	}}
}

// Clone returns another handle to the same storage.
func (m Map[K, V]) Clone() Map[K, V] {
	return m
}

// Name returns the name configured with WithName.
func (m Map[K, V]) Name() string {
	return m.c.opts.name
}

// Register stores value under key and returns the Entry that owns the slot.
// It returns a *DuplicateKeyError (matching ErrDuplicateKey) if key is
// already live; the existing value is left untouched.
func (m Map[K, V]) Register(key K, value V) (*Entry[V], error) {
	id, ok := m.c.insert(key, value)
	if !ok {
		observability.LogDuplicateKey(m.c.opts.logger, key)
		return nil, &DuplicateKeyError{Registry: m.c.opts.name, Key: key}
	}
	observability.LogEntryRegistered(m.c.opts.logger, uint64(id))
	m.c.opts.metrics.RecordRegister(context.Background(), m.c.opts.name)
	return m.c.entry(id), nil
}

// MustRegister is like Register but panics on error.
func (m Map[K, V]) MustRegister(key K, value V) *Entry[V] {
	e, err := m.Register(key, value)
	if err != nil {
		panic(err)
	}
	return e
}

func (c *mapCore[K, V]) insert(key K, value V) (ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slots.Has(key) {
		return 0, false
	}
	id := c.ids.take()
	c.slots.Insert(key, value)
	c.keys[id] = key
	return id, true
}

func (c *mapCore[K, V]) entry(id ID) *Entry[V] {
	wp := weak.Make(c)
	return newEntry(id, func() slotOwner[V] {
		if live := wp.Value(); live != nil {
			return live
		}
		return nil
	})
}

func (c *mapCore[K, V]) remove(id ID) {
	if !c.removeLocked(id) {
		return
	}
	observability.LogEntryRemoved(c.opts.logger, uint64(id))
	c.opts.metrics.RecordRemove(context.Background(), c.opts.name)
}

func (c *mapCore[K, V]) removeLocked(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[id]
	if !ok {
		return false
	}
	delete(c.keys, id)
	value, ok := c.slots.Remove(key)
	if !ok {
		return false
	}
	if c.onRemove != nil {
		c.onRemove(id, key, value)
	}
	return true
}

func (c *mapCore[K, V]) access(id ID, write bool, fn func(*V)) bool {
	if write {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	key, ok := c.keys[id]
	if !ok {
		return false
	}
	p := c.slots.Ptr(key)
	if p == nil {
		return false
	}
	fn(p)
	return true
}

// SetRemoveCallback installs fn to be called with the entry ID, key, and
// value of every removed slot while the write lock is held. It replaces any
// previous callback; nil clears it.
func (m Map[K, V]) SetRemoveCallback(fn func(id ID, key K, value V)) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	m.c.onRemove = fn
}

// Len returns the number of live entries.
func (m Map[K, V]) Len() int {
	m.c.mu.RLock()
	defer m.c.mu.RUnlock()
	return m.c.slots.Len()
}

// Read acquires the read lock. The caller must call Unlock on the guard.
func (m Map[K, V]) Read() *MapReadGuard[K, V] {
	m.c.mu.RLock()
	return &MapReadGuard[K, V]{c: m.c}
}

// Write acquires the write lock. The caller must call Unlock on the guard.
func (m Map[K, V]) Write() *MapWriteGuard[K, V] {
	m.c.mu.Lock()
	return &MapWriteGuard[K, V]{MapReadGuard: MapReadGuard[K, V]{c: m.c, write: true}}
}

// View runs fn with a read guard and releases it when fn returns or panics.
func (m Map[K, V]) View(fn func(g *MapReadGuard[K, V])) {
	g := m.Read()
	defer g.Unlock()
	fn(g)
}

// Mutate runs fn with a write guard and releases it when fn returns or panics.
func (m Map[K, V]) Mutate(fn func(g *MapWriteGuard[K, V])) {
	g := m.Write()
	defer g.Unlock()
	fn(g)
}

// String formats the contents as {key: value, ...} in key order.
func (m Map[K, V]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	m.View(func(g *MapReadGuard[K, V]) {
		first := true
		for k, v := range g.All() {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%v: %v", k, v)
		}
	})
	b.WriteByte('}')
	return b.String()
}

// MapReadGuard holds a map's read lock.
type MapReadGuard[K, V any] struct {
	c     *mapCore[K, V]
	write bool
	once  sync.Once
}

// Unlock releases the lock. Further calls do nothing.
func (g *MapReadGuard[K, V]) Unlock() {
	g.once.Do(func() {
		if g.write {
			g.c.mu.Unlock()
		} else {
			g.c.mu.RUnlock()
		}
	})
}

// Get returns the value stored under key.
func (g *MapReadGuard[K, V]) Get(key K) (V, bool) {
	return g.c.slots.Get(key)
}

// Has reports whether key is live.
func (g *MapReadGuard[K, V]) Has(key K) bool {
	return g.c.slots.Has(key)
}

// All iterates over (key, value) pairs in key order.
func (g *MapReadGuard[K, V]) All() iter.Seq2[K, V] {
	return g.c.slots.All()
}

// Keys returns the live keys in order.
func (g *MapReadGuard[K, V]) Keys() []K {
	return g.c.slots.Keys()
}

// Len returns the number of live entries.
func (g *MapReadGuard[K, V]) Len() int {
	return g.c.slots.Len()
}

// MapWriteGuard holds a map's write lock.
type MapWriteGuard[K, V any] struct {
	MapReadGuard[K, V]
}

// Each calls fn with a pointer to every value in key order.
func (g *MapWriteGuard[K, V]) Each(fn func(key K, value *V)) {
	g.c.slots.Each(fn)
}

// Update runs fn on the value stored under key.
// It returns false if key is not live.
func (g *MapWriteGuard[K, V]) Update(key K, fn func(*V)) bool {
	p := g.c.slots.Ptr(key)
	if p == nil {
		return false
	}
	fn(p)
	return true
}

// Set replaces the value stored under key. It does not create slots.
// It returns false if key is not live.
func (g *MapWriteGuard[K, V]) Set(key K, value V) bool {
	return g.Update(key, func(v *V) { *v = value })
}
