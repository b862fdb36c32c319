// Package journal records registry lifecycle transitions to an audit log.
//
// A journal observes a traced registry and appends one Record per Register
// and Unregister notification. Only the transitions are stored; the
// registry contents themselves are never persisted.
package journal

import (
	"errors"
	"time"
)

// Kind is the lifecycle transition a record describes.
type Kind string

const (
	KindRegister   Kind = "register"
	KindUnregister Kind = "unregister"
)

// Record is one journaled lifecycle transition.
type Record struct {
	ID       string    // unique record ID (UUID)
	Session  string    // groups records written by one Attach call
	Registry string    // registry name
	Kind     Kind      // register or unregister
	EntryID  uint64    // registry-assigned entry ID
	Value    string    // formatted value at the time of the transition
	Sequence int64     // store-assigned, strictly increasing across the store
	At       time.Time // UTC
}

// Store persists lifecycle records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores rec and assigns its Sequence.
	Append(rec Record) error

	// List returns the records of one registry ordered by sequence.
	// An empty registry name lists every record.
	// Returns an empty slice (not error) if nothing matches.
	List(registry string) ([]Record, error)

	// Registries returns the distinct registry names, sorted.
	Registries() ([]string, error)

	// Delete removes all records of a registry.
	// Returns nil if the registry has no records.
	Delete(registry string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")

	// ErrInvalidRecord indicates a record is missing its ID, registry, or kind.
	ErrInvalidRecord = errors.New("invalid journal record")
)

func validate(rec Record) error {
	if rec.ID == "" || rec.Registry == "" {
		return ErrInvalidRecord
	}
	if rec.Kind != KindRegister && rec.Kind != KindUnregister {
		return ErrInvalidRecord
	}
	return nil
}

// Live replays records in order and returns the register records whose
// entry was never unregistered. Records are keyed by registry and entry ID,
// so one slice may span several registries.
func Live(records []Record) []Record {
	type key struct {
		registry string
		session  string
		entry    uint64
	}
	open := make(map[key]int)
	var live []Record
	for _, rec := range records {
		k := key{rec.Registry, rec.Session, rec.EntryID}
		switch rec.Kind {
		case KindRegister:
			open[k] = len(live)
			live = append(live, rec)
		case KindUnregister:
			if i, ok := open[k]; ok {
				live[i].Kind = ""
				delete(open, k)
			}
		}
	}

	out := live[:0]
	for _, rec := range live {
		if rec.Kind != "" {
			out = append(out, rec)
		}
	}
	return out
}
