/*
Package registrar provides thread-safe registries whose entries live exactly
as long as the handle returned at registration.

# Overview

Registering a value returns an *Entry. The Entry is the only way to remove
the value: releasing it deletes the slot, fires the registry's remove
callback, and can never happen twice. This makes it simple to build
extension systems where menu items, routes, or observers disappear with the
extension that added them, without a matching "unregister" call for every
"register".

	menu := registrar.New[MenuItem]()

	home := menu.Register(MenuItem{Title: "Home"})
	defer home.Release()

	menu.View(func(g *registrar.ReadGuard[MenuItem]) {
	    for id, item := range g.All() {
	        fmt.Println(id, item.Title)
	    }
	})

# Type Erasure

Entries from registries of different value types can be kept together by
converting them with Generic. The resulting *AnyEntry keeps only the right
to remove its slot:

	var ext registrar.Handles
	ext.Add(menu.Register(MenuItem{Title: "Weather"}).Generic())
	ext.Add(styles.Register(StyleSheet{Path: "extension.css"}).Generic())

	ext.Release() // both slots are removed

# Keys

Registry assigns IDs from a counter starting at 0. IDs increase strictly and
are never reused, even after their slot is removed. Map is the keyed variant:
callers provide ordered keys and duplicate keys are rejected with
ErrDuplicateKey.

# Lifetime

Entries hold only a weak reference to their registry. Copies of a Registry
share storage and keep it alive; once no Registry copy is reachable the
storage is collected and releasing an outstanding entry does nothing.

# Locking

Each registry has one sync.RWMutex. Read guards and View share the read
lock; Register, Release, write guards, and callbacks take the write lock.
Callbacks and guard holders must not call back into the same registry:
the lock is not reentrant and doing so deadlocks.
*/
package registrar
