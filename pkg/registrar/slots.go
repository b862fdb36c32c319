package registrar

import (
	"iter"
	"math"
	"slices"
)

// ID identifies a slot within one Registry. IDs are handed out in strictly
// increasing order starting at 0 and are never reused by the same registry.
type ID uint64

// SlotTable stores values in ascending key order.
// It is not safe for concurrent use; Registry and Map guard it with their lock.
type SlotTable[K, V any] struct {
	compare func(a, b K) int
	keys    []K
	values  []V
}

// NewSlotTable creates an empty table ordered by compare.
func NewSlotTable[K, V any](compare func(a, b K) int) *SlotTable[K, V] {
	return &SlotTable[K, V]{compare: compare}
}

func (t *SlotTable[K, V]) search(key K) (int, bool) {
	return slices.BinarySearchFunc(t.keys, key, t.compare)
}

// Insert stores value under key. It returns false and leaves the table
// unchanged if key is already present.
func (t *SlotTable[K, V]) Insert(key K, value V) bool {
	i, found := t.search(key)
	if found {
		return false
	}
	t.keys = slices.Insert(t.keys, i, key)
	t.values = slices.Insert(t.values, i, value)
	return true
}

// Remove deletes key and returns the value it held.
func (t *SlotTable[K, V]) Remove(key K) (V, bool) {
	i, found := t.search(key)
	if !found {
		var zero V
		return zero, false
	}
	value := t.values[i]
	t.keys = slices.Delete(t.keys, i, i+1)
	t.values = slices.Delete(t.values, i, i+1)
	return value, true
}

// Get returns the value stored under key.
func (t *SlotTable[K, V]) Get(key K) (V, bool) {
	if p := t.Ptr(key); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Ptr returns a pointer to the value stored under key, or nil.
// The pointer is invalidated by the next Insert or Remove.
func (t *SlotTable[K, V]) Ptr(key K) *V {
	i, found := t.search(key)
	if !found {
		return nil
	}
	return &t.values[i]
}

// Has reports whether key is present.
func (t *SlotTable[K, V]) Has(key K) bool {
	_, found := t.search(key)
	return found
}

// Len returns the number of occupied slots.
func (t *SlotTable[K, V]) Len() int {
	return len(t.keys)
}

// Keys returns a copy of the keys in ascending order.
func (t *SlotTable[K, V]) Keys() []K {
	return slices.Clone(t.keys)
}

// All iterates over the slots in ascending key order.
// The table must not be modified during iteration.
func (t *SlotTable[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, k := range t.keys {
			if !yield(k, t.values[i]) {
				return
			}
		}
	}
}

// Each calls fn with a pointer to every value in ascending key order.
func (t *SlotTable[K, V]) Each(fn func(K, *V)) {
	for i, k := range t.keys {
		fn(k, &t.values[i])
	}
}

// idCounter hands out IDs in increasing order. The last ID it returns is
// math.MaxUint64; asking for another panics with ErrKeySpaceExhausted.
type idCounter struct {
	next      ID
	exhausted bool
}

func (c *idCounter) take() ID {
	if c.exhausted {
		panic(ErrKeySpaceExhausted)
	}
	id := c.next
	if id == math.MaxUint64 {
		c.exhausted = true
	} else {
		c.next++
	}
	return id
}
