// Package sessionstore persists a receiver's SessionContext between the separate HTTP calls that
// make up one Payjoin v2 session: the subdirectory a sender posted an Original PSBT to must still
// be found, with the same HPKE keys, whether the next call to fetch it
// lands on the same process or a different one behind a load balancer. It is a thin domain layer
// over storage.Storage — persistence mechanics belong there; this package only knows about
// Tokens and TTLs.
package sessionstore

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/btcjoin/receiver/storage"

	"github.com/pkg/errors"
)

// Token identifies one session's persisted record. It is derived from the receiver's long-term
// session keypair the same way a directory subdirectory id is (see ohttp.ShortID), so the two
// never need to be computed twice.
type Token [8]byte

// String renders the token the way it appears in storage keys and log fields.
func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// Store persists and retrieves serialized SessionContext records.
type Store struct {
	backend storage.Storage
	ttl     time.Duration
}

// New wraps a storage.Storage backend. ttl bounds how long an abandoned session's record survives
// before the backend (where it supports TTL) reaps it; zero means never expire, left to the
// backend's own retention policy.
func New(backend storage.Storage, ttl time.Duration) *Store {
	return &Store{backend: backend, ttl: ttl}
}

func (s *Store) key(token Token) string {
	return "session:" + token.String()
}

// Save persists the marshaled form of a session (SessionContext.MarshalBinary) under token,
// overwriting any existing record.
func (s *Store) Save(ctx context.Context, token Token, data []byte) error {
	opts := storage.NewOptions()
	if s.ttl > 0 {
		opts.TTL = int64(s.ttl.Seconds())
	}

	if err := s.backend.Write(ctx, s.key(token), data, &opts); err != nil {
		return errors.Wrap(err, "write session")
	}

	return nil
}

// Load retrieves the marshaled form of a session, for the caller to pass to
// SessionContext.UnmarshalBinary. Returns storage.ErrNotFound if no record exists for token,
// which the caller should treat as an unknown/expired session (BIP-77 §9's "session not found"
// response).
func (s *Store) Load(ctx context.Context, token Token) ([]byte, error) {
	data, err := s.backend.Read(ctx, s.key(token))
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "read session")
	}

	return data, nil
}

// Delete removes a session's record once it has reached a terminal state (finalized, or expired
// and swept by an operator process).
func (s *Store) Delete(ctx context.Context, token Token) error {
	if err := s.backend.Remove(ctx, s.key(token)); err != nil {
		return errors.Wrap(err, "remove session")
	}

	return nil
}
