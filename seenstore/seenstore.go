// Package seenstore implements the replay guard behind the receiver's is_known oracle: once an
// input's outpoint has been accepted into a finalized proposal, it must never be accepted again,
// even across receiver process restarts. A plain Storage.Write is not enough for this — two
// concurrent sessions could both Read a miss and then both Write, each believing it claimed the
// outpoint first — so this package is built directly on Redis's SETNX rather than routed through
// the generic storage.Storage interface, the same way tokenized-pkg/storage/redis.go goes
// straight to redis.Conn.Do for operations a generic Reader/Writer can't express atomically.
package seenstore

import (
	"context"
	"fmt"

	"github.com/btcjoin/receiver/wire"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// Store records outpoints the receiver has already contributed to a finalized proposal, and
// rejects any later attempt to reuse one. One Store is shared by every session on a receiver
// instance.
type Store struct {
	pool   *redis.Pool
	prefix string
}

// New wraps a redis.Pool. prefix namespaces keys so a replay-guard store can share a Redis
// instance with other state (e.g. sessionstore) without key collisions.
func New(pool *redis.Pool, prefix string) *Store {
	return &Store{pool: pool, prefix: prefix}
}

func (s *Store) key(outpoint wire.OutPoint) string {
	return fmt.Sprintf("%s:seen:%s:%d", s.prefix, outpoint.Hash.String(), outpoint.Index)
}

// CheckAndRecord atomically checks whether outpoint has been seen before and, if not, records it.
// It returns true if this call is the one that recorded it (i.e. the outpoint was not previously
// known); false means a prior call already claimed it and the caller must treat the input as
// already spent in another proposal.
func (s *Store) CheckAndRecord(ctx context.Context, outpoint wire.OutPoint) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, errors.Wrap(err, "get connection")
	}
	defer conn.Close()

	reply, err := redis.String(conn.Do("SET", s.key(outpoint), 1, "NX"))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "setnx")
	}

	return reply == "OK", nil
}

// IsKnown reports whether outpoint has already been recorded, without recording it. This backs
// the receiver's is_known oracle for inputs that are only being inspected, not yet committed.
func (s *Store) IsKnown(ctx context.Context, outpoint wire.OutPoint) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, errors.Wrap(err, "get connection")
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", s.key(outpoint)))
	if err != nil {
		return false, errors.Wrap(err, "exists")
	}

	return exists, nil
}
