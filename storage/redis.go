package storage

import (
	"context"

	"github.com/gomodule/redigo/redis"
)

// Redis implements Storage against a Redis connection. seenstore does not use it: the replay guard
// needs SETNX-based atomicity that this generic interface cannot express, so seenstore.Store works
// on a redis.Pool directly.
type Redis struct {
	Conn redis.Conn
}

// NewRedis wraps an existing Redis connection.
func NewRedis(conn redis.Conn) *Redis {
	return &Redis{Conn: conn}
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.Conn.Do("GET", key)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		return nil, ErrNotFound
	}

	b, ok := resp.([]byte)
	if !ok {
		return nil, ErrNotFound
	}

	return b, nil
}

func (r *Redis) Write(ctx context.Context, key string, value []byte, opts *Options) error {
	if opts != nil && opts.TTL > 0 {
		if _, err := r.Conn.Do("SET", key, value, "EX", opts.TTL); err != nil {
			return err
		}
		return r.Conn.Flush()
	}

	if _, err := r.Conn.Do("SET", key, value); err != nil {
		return err
	}
	return r.Conn.Flush()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if _, err := r.Conn.Do("DEL", key); err != nil {
		return err
	}
	return r.Conn.Flush()
}
