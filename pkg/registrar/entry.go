package registrar

import (
	"fmt"
	"sync/atomic"
)

// remover is the capability an AnyEntry keeps: removing one slot.
type remover interface {
	remove(id ID)
}

// slotOwner is what a typed Entry reaches through its weak reference.
type slotOwner[T any] interface {
	remover
	// access runs fn on the slot's value under the read or write lock.
	// It returns false if the slot is gone.
	access(id ID, write bool, fn func(*T)) bool
}

// slotRef is the single removal right for one slot. Whoever holds the
// slotRef owns the slot; it is moved, never shared, between Entry and AnyEntry.
type slotRef struct {
	id       ID
	released atomic.Bool
	// resolve returns nil once the owning registry has been collected.
	resolve func() remover
}

func (s *slotRef) release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if r := s.resolve(); r != nil {
		r.remove(s.id)
	}
}

// Releaser is implemented by every registration handle.
type Releaser interface {
	// Release ends the registration. It is idempotent.
	Release()
}

// Entry controls the lifetime of one registered value. The value stays in
// its registry until Release is called, usually via defer:
//
//	entry := menu.Register(MenuItem{Title: "Home"})
//	defer entry.Release()
//
// An Entry must not be copied. It does not keep its registry alive: once
// every Registry value is unreachable the storage is collected and Release
// becomes a no-op.
type Entry[T any] struct {
	id      ID
	ref     atomic.Pointer[slotRef]
	resolve func() slotOwner[T]
}

func newEntry[T any](id ID, resolve func() slotOwner[T]) *Entry[T] {
	e := &Entry[T]{id: id, resolve: resolve}
	e.ref.Store(&slotRef{
		id: id,
		resolve: func() remover {
			if o := resolve(); o != nil {
				return o
			}
			return nil
		},
	})
	return e
}

// ID returns the slot ID assigned at registration.
func (e *Entry[T]) ID() ID {
	return e.id
}

// Release removes the value from its registry, firing the registry's remove
// callback. Calling Release more than once, after Generic, or after the
// registry is gone does nothing.
func (e *Entry[T]) Release() {
	if e == nil {
		return
	}
	if ref := e.ref.Swap(nil); ref != nil {
		ref.release()
	}
}

// Generic converts the entry into a type-erased AnyEntry so handles from
// registries of different value types can be kept in one collection. The
// removal right moves to the returned AnyEntry; afterwards this Entry is
// inert. Converting an already released entry yields an inert AnyEntry.
func (e *Entry[T]) Generic() *AnyEntry {
	if e == nil {
		return &AnyEntry{}
	}
	return &AnyEntry{id: e.id, ref: e.ref.Swap(nil)}
}

// owner returns the live registry behind the entry, or nil if the entry was
// released, converted, or its registry was collected.
func (e *Entry[T]) owner() slotOwner[T] {
	if e == nil || e.ref.Load() == nil {
		return nil
	}
	return e.resolve()
}

// Alive reports whether the entry still owns a slot in a live registry.
func (e *Entry[T]) Alive() bool {
	o := e.owner()
	if o == nil {
		return false
	}
	return o.access(e.id, false, func(*T) {})
}

// Get returns a copy of the registered value.
// ok is false if the entry no longer owns a slot.
func (e *Entry[T]) Get() (value T, ok bool) {
	o := e.owner()
	if o == nil {
		return value, false
	}
	ok = o.access(e.id, false, func(v *T) { value = *v })
	return value, ok
}

// Update runs fn on the registered value under the registry's write lock.
// fn must not call back into the same registry.
// It returns false if the entry no longer owns a slot.
func (e *Entry[T]) Update(fn func(*T)) bool {
	o := e.owner()
	if o == nil {
		return false
	}
	return o.access(e.id, true, fn)
}

// String returns "E<id>".
func (e *Entry[T]) String() string {
	return fmt.Sprintf("E%d", e.id)
}

// AnyEntry is a registration handle with its value type erased. It keeps
// only the right to remove its slot.
type AnyEntry struct {
	id  ID
	ref *slotRef
}

// ID returns the slot ID assigned at registration.
func (a *AnyEntry) ID() ID {
	return a.id
}

// Release removes the slot from its registry. It is idempotent and does
// nothing once the registry is gone.
func (a *AnyEntry) Release() {
	if a == nil || a.ref == nil {
		return
	}
	a.ref.release()
}

// Alive reports whether the handle has not been released and its registry
// still exists.
func (a *AnyEntry) Alive() bool {
	if a == nil || a.ref == nil || a.ref.released.Load() {
		return false
	}
	return a.ref.resolve() != nil
}

// String returns "E<id>".
func (a *AnyEntry) String() string {
	return fmt.Sprintf("E%d", a.id)
}

var (
	_ Releaser = (*Entry[int])(nil)
	_ Releaser = (*AnyEntry)(nil)
)
