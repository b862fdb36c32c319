package registrar

import "sync"

// Handles owns a group of registrations, typically everything one extension
// or subscription registered, and releases them together.
//
//	var ext registrar.Handles
//	ext.Add(menu.Register(MenuItem{Title: "Weather"}))
//	ext.Add(styles.Register(StyleSheet{Path: "extension.css"}))
//	...
//	ext.Release() // unload the extension
//
// The zero value is ready to use. Handles is safe for concurrent use.
type Handles struct {
	mu    sync.Mutex
	items []Releaser
}

// Add takes ownership of the given handles.
func (h *Handles) Add(rs ...Releaser) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rs {
		if r != nil {
			h.items = append(h.items, r)
		}
	}
}

// Len returns the number of owned handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Release releases every owned handle in the order they were added and
// empties the group. The group can be reused afterwards.
func (h *Handles) Release() {
	h.mu.Lock()
	items := h.items
	h.items = nil
	h.mu.Unlock()

	for _, r := range items {
		r.Release()
	}
}

var _ Releaser = (*Handles)(nil)
