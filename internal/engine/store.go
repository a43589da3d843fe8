// Package engine implements the durable key-value store that backs the
// viaticos collections between restarts.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrKeyNotFound is returned when a requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for keys that cannot be used as storage names.
	ErrInvalidKey = errors.New("invalid key")
	// ErrCorrupt is returned by Load when a stored value does not decode.
	ErrCorrupt = errors.New("stored value is corrupt")
	// ErrSealed is returned by LoadAll when a snapshot is encrypted but no
	// master key is configured.
	ErrSealed = errors.New("snapshot is sealed, a master key is required")
	// ErrUnseal is returned by LoadAll when a snapshot cannot be decrypted
	// with the configured key, including plaintext snapshots.
	ErrUnseal = errors.New("snapshot cannot be unsealed with this key")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidKey reports whether key is usable by every backend.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && key != "." && key != ".."
}

// KVReader defines the basic read operations for the store.
type KVReader interface {
	Get(key string) ([]byte, error)
}

// KVWriter defines the basic write and delete operations for the store.
// Set stores the JSON encoding of val as a whole-value snapshot.
type KVWriter interface {
	Set(key string, val any) error
	Delete(key string) error
}

// KV is the full key-value contract used by the viaticos store.
type KV interface {
	KVReader
	KVWriter
	Keys() ([]string, error)
}

// Persister is the durable backend behind a MemStore.
type Persister interface {
	Save(key string, data []byte) error
	Remove(key string) error
	LoadAll() (map[string][]byte, error)
}

// Load decodes the value stored under key into a T. It returns def when the
// key is absent, and def together with an ErrCorrupt-wrapped error when the
// stored bytes do not parse, so callers can log and carry on.
func Load[T any](r KVReader, key string, def T) (T, error) {
	raw, err := r.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}

	var target T
	if err := json.Unmarshal(raw, &target); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return target, nil
}
