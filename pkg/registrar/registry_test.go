package registrar

import (
	"bytes"
	"context"
	"math"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/registrar/pkg/registrar/observability"
)

type menuItem struct {
	Title string
}

type styleSheet struct {
	Path string
}

// visible returns the registry contents as a map.
func visible[T any](r Registry[T]) map[ID]T {
	out := make(map[ID]T)
	r.View(func(g *ReadGuard[T]) {
		for id, v := range g.All() {
			out[id] = v
		}
	})
	return out
}

func TestNew(t *testing.T) {
	r := New[int]()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "registry", r.Name())
	assert.Equal(t, "{}", r.String())
}

func TestRegister_AssignsIncreasingIDs(t *testing.T) {
	r := New[string]()

	a := r.Register("A")
	b := r.Register("B")
	c := r.Register("C")
	d := r.Register("D")

	assert.Equal(t, ID(0), a.ID())
	assert.Equal(t, ID(1), b.ID())
	assert.Equal(t, ID(2), c.ID())
	assert.Equal(t, ID(3), d.ID())

	c.Release()
	d.Release()

	e := r.Register("E")
	assert.Equal(t, ID(4), e.ID(), "IDs are never reused")

	assert.Equal(t, map[ID]string{0: "A", 1: "B", 4: "E"}, visible(r))
}

func TestRegister_ExtensionScenario(t *testing.T) {
	menu := New[menuItem](WithName("menu"))
	styles := New[styleSheet](WithName("styles"))

	var site Handles
	site.Add(menu.Register(menuItem{"Home"}).Generic())
	site.Add(menu.Register(menuItem{"About"}).Generic())
	site.Add(styles.Register(styleSheet{"website.css"}).Generic())

	var ext Handles
	ext.Add(menu.Register(menuItem{"Weather"}).Generic())
	ext.Add(menu.Register(menuItem{"News"}).Generic())
	ext.Add(styles.Register(styleSheet{"extension.css"}).Generic())

	assert.Equal(t, map[ID]menuItem{
		0: {"Home"}, 1: {"About"}, 2: {"Weather"}, 3: {"News"},
	}, visible(menu))
	assert.Equal(t, map[ID]styleSheet{0: {"website.css"}, 1: {"extension.css"}}, visible(styles))

	ext.Release()

	assert.Equal(t, map[ID]menuItem{0: {"Home"}, 1: {"About"}}, visible(menu))
	assert.Equal(t, map[ID]styleSheet{0: {"website.css"}}, visible(styles))
	assert.Equal(t, 0, ext.Len())
	assert.Equal(t, 3, site.Len())
}

func TestLen(t *testing.T) {
	r := New[int]()
	e1 := r.Register(0)
	e2 := r.Register(0)
	e3 := r.Register(0)
	e4 := r.Register(0)
	assert.Equal(t, 4, r.Len())

	e1.Release()
	e2.Release()
	assert.Equal(t, 2, r.Len())

	e3.Release()
	e4.Release()
	assert.Equal(t, 0, r.Len())
}

func TestReadGuard_Iteration(t *testing.T) {
	r := New[int]()

	collect := func() []ID {
		g := r.Read()
		defer g.Unlock()
		var ids []ID
		for id := range g.All() {
			ids = append(ids, id)
		}
		return ids
	}

	assert.Empty(t, collect())

	e1 := r.Register(11)
	e2 := r.Register(22)
	e3 := r.Register(33)
	assert.Equal(t, []ID{0, 1, 2}, collect())

	e2.Release()
	assert.Equal(t, []ID{0, 2}, collect())

	e1.Release()
	assert.Equal(t, []ID{2}, collect())

	e3.Release()
	assert.Empty(t, collect())
}

func TestReadGuard_GetAndIDs(t *testing.T) {
	r := New[string]()
	_ = r.Register("a")
	b := r.Register("b")
	defer b.Release()

	g := r.Read()
	defer g.Unlock()

	v, ok := g.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = g.Get(9)
	assert.False(t, ok)

	assert.Equal(t, []ID{0, 1}, g.IDs())
	assert.Equal(t, 2, g.Len())
}

func TestReadGuard_UnlockIdempotent(t *testing.T) {
	r := New[int]()
	g := r.Read()
	g.Unlock()
	assert.NotPanics(t, g.Unlock)

	w := r.Write()
	w.Unlock()
	assert.NotPanics(t, w.Unlock)

	// lock is free again
	e := r.Register(1)
	e.Release()
}

func TestReadGuard_ConcurrentReaders(t *testing.T) {
	r := New[int]()
	e := r.Register(1)
	defer e.Release()

	g1 := r.Read()
	done := make(chan struct{})
	go func() {
		g2 := r.Read()
		g2.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked by first")
	}
	g1.Unlock()
}

func TestReadGuard_BlocksRelease(t *testing.T) {
	r := New[int]()
	e := r.Register(1)

	g := r.Read()
	released := make(chan struct{})
	go func() {
		e.Release()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("release proceeded while read guard held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Unlock()
	<-released
	assert.Equal(t, 0, r.Len())
}

func TestWriteGuard_Mutation(t *testing.T) {
	r := New[int]()
	e1 := r.Register(0)
	e2 := r.Register(100)

	r.Mutate(func(g *WriteGuard[int]) {
		g.Each(func(_ ID, v *int) { *v++ })
	})
	assert.Equal(t, "{0: 1, 1: 101}", r.String())

	require.True(t, e1.Update(func(v *int) { *v += 10 }))
	require.True(t, e2.Update(func(v *int) { *v += 10 }))
	assert.Equal(t, "{0: 11, 1: 111}", r.String())

	w := r.Write()
	assert.True(t, w.Set(0, 5))
	assert.False(t, w.Set(7, 5))
	assert.True(t, w.Update(1, func(v *int) { *v = 6 }))
	w.Unlock()
	assert.Equal(t, "{0: 5, 1: 6}", r.String())
}

func TestView_ReleasesLockOnPanic(t *testing.T) {
	r := New[int]()

	assert.Panics(t, func() {
		r.View(func(*ReadGuard[int]) { panic("boom") })
	})
	assert.Panics(t, func() {
		r.Mutate(func(*WriteGuard[int]) { panic("boom") })
	})

	// both locks were released
	e := r.Register(1)
	e.Release()
	assert.Equal(t, 0, r.Len())
}

func TestClone_SharesStorage(t *testing.T) {
	r := New[string]()
	c := r.Clone()

	e := c.Register("shared")
	assert.Equal(t, 1, r.Len())

	e.Release()
	assert.Equal(t, 0, r.Len())
}

func TestSetRemoveCallback(t *testing.T) {
	r := New[string]()

	type removal struct {
		id    ID
		value string
	}
	var removed []removal
	r.SetRemoveCallback(func(id ID, v string) {
		removed = append(removed, removal{id, v})
	})

	a := r.Register("a")
	b := r.Register("b")

	b.Release()
	b.Release()
	a.Release()

	assert.Equal(t, []removal{{1, "b"}, {0, "a"}}, removed)
}

func TestSetRemoveCallback_SeesValueBeforeDiscard(t *testing.T) {
	r := New[*bytes.Buffer]()
	var seen string
	r.SetRemoveCallback(func(_ ID, buf *bytes.Buffer) {
		seen = buf.String()
	})

	e := r.Register(bytes.NewBufferString("payload"))
	e.Release()

	assert.Equal(t, "payload", seen)
}

func TestSetRemoveCallback_Replace(t *testing.T) {
	r := New[int]()
	first, second := 0, 0
	r.SetRemoveCallback(func(ID, int) { first++ })
	r.SetRemoveCallback(func(ID, int) { second++ })

	r.Register(1).Release()

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	r.SetRemoveCallback(nil)
	assert.NotPanics(t, func() { r.Register(2).Release() })
}

func TestSetRegisterCallback(t *testing.T) {
	r := New[string]()
	var added []ID
	r.SetRegisterCallback(func(id ID, _ string) { added = append(added, id) })

	a := r.Register("a")
	b := r.Register("b")
	defer a.Release()
	defer b.Release()

	assert.Equal(t, []ID{0, 1}, added)
}

func TestSetRegisterCallback_PanicRollsBack(t *testing.T) {
	r := New[string]()
	removed := 0
	r.SetRemoveCallback(func(ID, string) { removed++ })
	r.SetRegisterCallback(func(_ ID, v string) {
		if v == "boom" {
			panic("register rejected")
		}
	})

	var e *Entry[string]
	assert.PanicsWithValue(t, "register rejected", func() { e = r.Register("boom") })
	assert.Nil(t, e)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "{}", r.String())
	assert.Equal(t, 1, removed)

	// lock released and the aborted ID is not reused
	ok := r.Register("ok")
	defer ok.Release()
	assert.Equal(t, ID(1), ok.ID())
	assert.Equal(t, map[ID]string{1: "ok"}, visible(r))
}

func TestCallbackMayRegisterIntoOtherRegistry(t *testing.T) {
	r := New[string]()
	graveyard := New[string]()
	var tombs Handles

	r.SetRemoveCallback(func(_ ID, v string) {
		tombs.Add(graveyard.Register(v))
	})

	r.Register("gone").Release()

	assert.Equal(t, "{0: gone}", graveyard.String())
	tombs.Release()
	assert.Equal(t, 0, graveyard.Len())
}

func TestRegister_KeySpaceExhausted(t *testing.T) {
	r := New[int]()
	r.c.ids.next = math.MaxUint64

	last := r.Register(1)
	assert.Equal(t, ID(math.MaxUint64), last.ID())

	assert.PanicsWithValue(t, ErrKeySpaceExhausted, func() { r.Register(2) })

	// the registry is still usable for reads and releases
	assert.Equal(t, 1, r.Len())
	last.Release()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Observability(t *testing.T) {
	var buf bytes.Buffer
	logger, err := observability.NewLogger(&buf, "debug", "text")
	require.NoError(t, err)

	rec := &countingMetrics{}
	r := New[int](WithName("menu"), WithLogger(logger), WithMetrics(rec))

	e := r.Register(1)
	e.Release()
	e.Release()

	assert.Equal(t, 1, rec.registered)
	assert.Equal(t, 1, rec.removed)
	assert.Contains(t, buf.String(), "entry registered")
	assert.Contains(t, buf.String(), "entry removed")
	assert.Contains(t, buf.String(), "registry=menu")
}

func TestWithLogger_TagsRegistryOnce(t *testing.T) {
	var buf bytes.Buffer
	logger, err := observability.NewLogger(&buf, "debug", "text")
	require.NoError(t, err)

	r := New[int](WithLogger(logger), WithName("menu"))
	r.Register(1).Release()

	m := NewMap[string, int](WithName("routes"), WithLogger(logger))
	e := m.MustRegister("home", 1)
	_, err = m.Register("home", 2)
	require.Error(t, err)
	e.Release()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines[:2] {
		assert.Equal(t, 1, strings.Count(line, "registry="), line)
		assert.Contains(t, line, "registry=menu")
	}
	for _, line := range lines[2:] {
		assert.Equal(t, 1, strings.Count(line, "registry="), line)
		assert.Contains(t, line, "registry=routes")
	}
	assert.Contains(t, lines[3], "duplicate key rejected")
}

func TestWithMetrics_NilKeepsNoop(t *testing.T) {
	r := New[int](WithMetrics(nil), WithName(""))
	assert.Equal(t, "registry", r.Name())
	assert.NotPanics(t, func() { r.Register(1).Release() })
}

func TestConcurrentRegisterRelease(t *testing.T) {
	r := New[int]()
	const workers = 16
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[ID]bool)

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := range perWorker {
				e := r.Register(w*perWorker + i)
				mu.Lock()
				if seen[e.ID()] {
					mu.Unlock()
					t.Errorf("duplicate id %d", e.ID())
					return nil
				}
				seen[e.ID()] = true
				mu.Unlock()

				if v, ok := e.Get(); !ok || v != w*perWorker+i {
					t.Errorf("entry %d lost its value", e.ID())
				}
				e.Release()
			}
			return nil
		})
	}
	for range 4 {
		g.Go(func() error {
			for range perWorker {
				r.View(func(rg *ReadGuard[int]) {
					prev := ID(0)
					first := true
					for id := range rg.All() {
						if !first && id <= prev {
							t.Errorf("ids out of order: %d after %d", id, prev)
						}
						prev, first = id, false
					}
				})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, r.Len())
	assert.Len(t, seen, workers*perWorker)
}

func TestConcurrentRelease_SameEntry(t *testing.T) {
	r := New[int]()
	calls := 0
	r.SetRemoveCallback(func(ID, int) { calls++ })

	e := r.Register(1)
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

// countingMetrics is a MetricsRecorder that counts calls.
type countingMetrics struct {
	mu         sync.Mutex
	registered int
	removed    int
	dispatched int
}

func (m *countingMetrics) RecordRegister(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered++
}

func (m *countingMetrics) RecordRemove(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed++
}

func (m *countingMetrics) RecordDispatch(context.Context, string, int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched++
}

// registerDetached registers into a registry that becomes unreachable as
// soon as this function returns.
func registerDetached[T any](v T) *Entry[T] {
	r := New[T]()
	return r.Register(v)
}

func TestEntry_OutlivesRegistry(t *testing.T) {
	e := registerDetached(11)
	require.True(t, e.Alive())

	require.Eventually(t, func() bool {
		runtime.GC()
		return !e.Alive()
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := e.Get()
	assert.False(t, ok)
	assert.False(t, e.Update(func(*int) {}))
	assert.NotPanics(t, e.Release)
}

func TestAnyEntry_OutlivesRegistry(t *testing.T) {
	a := registerDetached("x").Generic()
	require.True(t, a.Alive())

	require.Eventually(t, func() bool {
		runtime.GC()
		return !a.Alive()
	}, 5*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, a.Release)
}
