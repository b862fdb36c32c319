package registrar

import (
	"errors"
	"fmt"
)

// Sentinel errors for registration.
var (
	// ErrDuplicateKey indicates Map.Register was called with a key that is
	// already occupied by a live entry.
	ErrDuplicateKey = errors.New("key already registered")

	// ErrKeySpaceExhausted is the panic value of Register once every ID of
	// the registry has been handed out.
	ErrKeySpaceExhausted = errors.New("registry key space exhausted")
)

// DuplicateKeyError reports which key a keyed registration collided with.
type DuplicateKeyError struct {
	// Registry is the name of the map that rejected the key.
	Registry string
	// Key is the rejected key.
	Key any
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("registry %s: key %v: %v", e.Registry, e.Key, ErrDuplicateKey)
}

// Unwrap returns ErrDuplicateKey for errors.Is support.
func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}
