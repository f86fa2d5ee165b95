// Package storage provides the key/byte-slice persistence backend used to durably hold receiver
// session state (see sessionstore) between the HTTP calls of a Payjoin v2 session. The replay-guard
// record of previously-seen inputs (see seenstore) does not go through this package; seenstore
// talks to Redis directly. It is trimmed from a general object-storage interface down to the
// Reader/Writer/Remover concerns this system actually uses — there is no search, clear, or
// directory-listing need for a session blob.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("Not found")

// Storage combines the read/write/remove operations every backend below implements.
type Storage interface {
	Reader
	Writer
	Remover
}

// Reader retrieves a previously stored value.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Writer stores or overwrites a value, optionally expiring it per Options.TTL.
type Writer interface {
	Write(ctx context.Context, key string, value []byte, opts *Options) error
}

// Remover deletes a stored value. Removing a key that does not exist is not an error.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Options configures a Write call. Not every backend honors every field — a filesystem backend
// has no TTL support, for instance.
type Options struct {
	TTL int64 // seconds; zero means never expire
}

// NewOptions returns sane defaults: no expiry.
func NewOptions() Options {
	return Options{TTL: 0}
}
