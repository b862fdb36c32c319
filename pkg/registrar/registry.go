package registrar

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"sync"
	"weak"

	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

// core is the storage shared by every copy of a Registry. Entries point at
// it weakly.
type core[T any] struct {
	mu         sync.RWMutex
	slots      *SlotTable[ID, T]
	ids        idCounter
	onRegister func(ID, T)
	onRemove   func(ID, T)
	opts       options
}

// Registry is a container whose values live exactly as long as the Entry
// returned by Register. Copies of a Registry share the same storage; the
// zero value is not usable, create registries with New.
//
// Callbacks installed with SetRegisterCallback and SetRemoveCallback run
// while the registry's write lock is held. A register callback that panics
// aborts the registration: the slot is removed, the remove callback fires,
// and the ID is not reused. They must not call back into the
// same registry; doing so deadlocks.
type Registry[T any] struct {
	c *core[T]
}

// New creates an empty registry.
func New[T any](opts ...Option) Registry[T] {
	return Registry[T]{c: &core[T]{
		slots: NewSlotTable[ID, T](cmp.Compare[ID]),
		opts:  buildOptions(opts),
	}}
}

// Clone returns another handle to the same storage.
func (r Registry[T]) Clone() Registry[T] {
	return r
}

// Name returns the name configured with WithName.
func (r Registry[T]) Name() string {
	return r.c.opts.name
}

// Register stores value under the next ID and returns the Entry that owns
// the slot. The value is removed when the Entry is released.
//
// Register panics with ErrKeySpaceExhausted after 2^64 registrations.
func (r Registry[T]) Register(value T) *Entry[T] {
	id := r.c.insert(value)
	observability.LogEntryRegistered(r.c.opts.logger, uint64(id))
	r.c.opts.metrics.RecordRegister(context.Background(), r.c.opts.name)
	return r.c.entry(id)
}

// insert stores value and runs the register callback. If the callback
// panics the slot is removed again, with the remove callback, before the
// panic propagates, since no Entry will ever exist to release it.
func (c *core[T]) insert(value T) ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.ids.take()
	c.slots.Insert(id, value)

	committed := false
	defer func() {
		if committed {
			return
		}
		if v, ok := c.slots.Remove(id); ok && c.onRemove != nil {
			c.onRemove(id, v)
		}
	}()
	if c.onRegister != nil {
		c.onRegister(id, value)
	}
	committed = true
	return id
}

func (c *core[T]) entry(id ID) *Entry[T] {
	wp := weak.Make(c)
	return newEntry(id, func() slotOwner[T] {
		if live := wp.Value(); live != nil {
			return live
		}
		return nil
	})
}

// remove deletes the slot and fires the remove callback with the value
// before it is dropped. Removing a missing slot is a no-op.
func (c *core[T]) remove(id ID) {
	if !c.removeLocked(id) {
		return
	}
	observability.LogEntryRemoved(c.opts.logger, uint64(id))
	c.opts.metrics.RecordRemove(context.Background(), c.opts.name)
}

func (c *core[T]) removeLocked(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.slots.Remove(id)
	if !ok {
		return false
	}
	if c.onRemove != nil {
		c.onRemove(id, value)
	}
	return true
}

func (c *core[T]) access(id ID, write bool, fn func(*T)) bool {
	if write {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	p := c.slots.Ptr(id)
	if p == nil {
		return false
	}
	fn(p)
	return true
}

// SetRemoveCallback installs fn to be called with every removed slot's ID
// and value. It replaces any previous callback; nil clears it.
func (r Registry[T]) SetRemoveCallback(fn func(id ID, value T)) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.onRemove = fn
}

// SetRegisterCallback installs fn to be called with every new slot's ID and
// value. It replaces any previous callback; nil clears it.
func (r Registry[T]) SetRegisterCallback(fn func(id ID, value T)) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.onRegister = fn
}

// Len returns the number of live entries.
func (r Registry[T]) Len() int {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.slots.Len()
}

// Read acquires the read lock and returns a guard over the contents.
// The caller must call Unlock on the guard.
func (r Registry[T]) Read() *ReadGuard[T] {
	r.c.mu.RLock()
	return &ReadGuard[T]{c: r.c}
}

// Write acquires the write lock and returns a guard that can modify values
// in place. Slots cannot be added or removed through the guard.
// The caller must call Unlock on the guard.
func (r Registry[T]) Write() *WriteGuard[T] {
	r.c.mu.Lock()
	return &WriteGuard[T]{ReadGuard: ReadGuard[T]{c: r.c, write: true}}
}

// View runs fn with a read guard and releases it when fn returns or panics.
func (r Registry[T]) View(fn func(g *ReadGuard[T])) {
	g := r.Read()
	defer g.Unlock()
	fn(g)
}

// Mutate runs fn with a write guard and releases it when fn returns or panics.
func (r Registry[T]) Mutate(fn func(g *WriteGuard[T])) {
	g := r.Write()
	defer g.Unlock()
	fn(g)
}

// String formats the contents as {id: value, ...} in ID order.
func (r Registry[T]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	r.View(func(g *ReadGuard[T]) {
		first := true
		for id, v := range g.All() {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%d: %v", id, v)
		}
	})
	b.WriteByte('}')
	return b.String()
}
