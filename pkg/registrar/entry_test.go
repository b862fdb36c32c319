package registrar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_TypedAccess(t *testing.T) {
	r := New[int]()
	e1 := r.Register(11)
	e2 := r.Register(22)

	v, ok := e1.Get()
	require.True(t, ok)
	assert.Equal(t, 11, v)
	v, ok = e2.Get()
	require.True(t, ok)
	assert.Equal(t, 22, v)

	e1.Update(func(v *int) { *v = 33 })
	e2.Update(func(v *int) { *v = 44 })

	v, _ = e1.Get()
	assert.Equal(t, 33, v)
	v, _ = e2.Get()
	assert.Equal(t, 44, v)
}

func TestEntry_ReleaseIdempotent(t *testing.T) {
	r := New[int]()
	removals := 0
	r.SetRemoveCallback(func(ID, int) { removals++ })

	e := r.Register(1)
	assert.True(t, e.Alive())

	e.Release()
	e.Release()

	assert.False(t, e.Alive())
	assert.Equal(t, 1, removals)
	_, ok := e.Get()
	assert.False(t, ok)
	assert.False(t, e.Update(func(*int) {}))
}

func TestEntry_NilRelease(t *testing.T) {
	var e *Entry[int]
	assert.NotPanics(t, e.Release)
	assert.False(t, e.Alive())
	assert.False(t, e.Generic().Alive())
}

func TestEntry_String(t *testing.T) {
	r := New[int]()
	_ = r.Register(0)
	e := r.Register(0)
	assert.Equal(t, "E1", e.String())
	assert.Equal(t, "E1", e.Generic().String())
}

func TestGeneric_RemovesSameSlot(t *testing.T) {
	r := New[string]()
	keep := r.Register("keep")
	defer keep.Release()

	var removed []ID
	r.SetRemoveCallback(func(id ID, _ string) { removed = append(removed, id) })

	e := r.Register("erased")
	id := e.ID()
	a := e.Generic()

	assert.Equal(t, id, a.ID())
	assert.Equal(t, 2, r.Len())
	assert.True(t, a.Alive())

	a.Release()

	assert.Equal(t, []ID{id}, removed)
	assert.Equal(t, "{0: keep}", r.String())
	assert.False(t, a.Alive())
}

func TestGeneric_TransfersOwnership(t *testing.T) {
	r := New[int]()
	e := r.Register(7)
	a := e.Generic()

	assert.False(t, e.Alive(), "typed entry is consumed by Generic")
	_, ok := e.Get()
	assert.False(t, ok)

	e.Release()
	assert.Equal(t, 1, r.Len(), "releasing the consumed entry does nothing")

	a.Release()
	assert.Equal(t, 0, r.Len())
}

func TestGeneric_AfterRelease(t *testing.T) {
	r := New[int]()
	e := r.Register(7)
	e.Release()

	a := e.Generic()
	assert.False(t, a.Alive())
	assert.NotPanics(t, a.Release)
}

func TestGeneric_Twice(t *testing.T) {
	r := New[int]()
	e := r.Register(7)

	a := e.Generic()
	b := e.Generic()

	assert.True(t, a.Alive())
	assert.False(t, b.Alive())

	b.Release()
	assert.Equal(t, 1, r.Len())
	a.Release()
	assert.Equal(t, 0, r.Len())
}

func TestAnyEntry_HeterogeneousCollection(t *testing.T) {
	ints := New[int]()
	flags := New[bool]()

	var entries []*AnyEntry
	entries = append(entries, ints.Register(11).Generic())
	assert.Equal(t, 1, ints.Len())
	assert.Equal(t, 0, flags.Len())

	entries = append(entries, flags.Register(false).Generic())
	assert.Equal(t, 1, ints.Len())
	assert.Equal(t, 1, flags.Len())

	for _, e := range entries {
		e.Release()
	}
	assert.Equal(t, 0, ints.Len())
	assert.Equal(t, 0, flags.Len())
}

func TestAnyEntry_Nil(t *testing.T) {
	var a *AnyEntry
	assert.NotPanics(t, a.Release)
	assert.False(t, a.Alive())
}
