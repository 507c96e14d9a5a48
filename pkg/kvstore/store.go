// Package kvstore provides the minimal persistent key-value capability the
// transaction cache spills cold entries into. The cache is polymorphic over
// the Store interface so storage engines can be swapped without touching
// cache logic; two engines ship with the package, an embedded bbolt file
// database and a log-structured memory-mapped file.
package kvstore

import "errors"

var (
	ErrStoreClosed = errors.New("backing store is closed")
)

// Store is the capability contract of a disk backing store. Keys and values
// are opaque binary blobs; the store never interprets them.
type Store interface {
	// Get returns the value stored under key, reporting false when the key
	// is absent.
	Get(key []byte) ([]byte, bool, error)

	// Put stores value under key, overwriting any previous value.
	Put(key, value []byte) error

	// Contains reports whether key is present without reading the value.
	Contains(key []byte) (bool, error)

	// Close releases the store's resources. The underlying storage is
	// ephemeral; callers remove the directory after closing.
	Close() error
}

// Opener creates a Store rooted at the given directory. A failed open is
// fatal to the run, since it signals an unusable environment rather than a
// data problem.
type Opener func(dir string) (Store, error)
