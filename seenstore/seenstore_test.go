package seenstore

import (
	"context"
	"sync"
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/gomodule/redigo/redis"
)

// fakeConn is a minimal in-memory stand-in for a redis.Conn, implementing just enough of SET/NX,
// EXISTS, and DEL to exercise Store's logic without a running Redis instance.
type fakeConn struct {
	mu   sync.Mutex
	data map[string]bool
}

func newFakeConn(data map[string]bool) *fakeConn {
	return &fakeConn{data: data}
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(commandName string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch commandName {
	case "SET":
		key := args[0].(string)
		if _, exists := c.data[key]; exists {
			return nil, redis.ErrNil
		}
		c.data[key] = true
		return "OK", nil

	case "EXISTS":
		key := args[0].(string)
		if c.data[key] {
			return int64(1), nil
		}
		return int64(0), nil

	case "DEL":
		key := args[0].(string)
		delete(c.data, key)
		return int64(1), nil
	}

	return nil, nil
}

func (c *fakeConn) Send(commandName string, args ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                                       { return nil }
func (c *fakeConn) Receive() (interface{}, error)                      { return nil, nil }

func fakePool(data map[string]bool) *redis.Pool {
	return &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return newFakeConn(data), nil
		},
	}
}

func testOutpoint(index uint32) wire.OutPoint {
	var hash bitcoin.Hash32
	hash[0] = byte(index)
	return wire.OutPoint{Hash: hash, Index: index}
}

func TestStore_CheckAndRecord_FirstClaimWins(t *testing.T) {
	store := New(fakePool(map[string]bool{}), "test")
	ctx := context.Background()
	outpoint := testOutpoint(1)

	claimed, err := store.CheckAndRecord(ctx, outpoint)
	if err != nil {
		t.Fatalf("check and record: %s", err)
	}
	if !claimed {
		t.Fatal("expected first CheckAndRecord to claim the outpoint")
	}

	claimed, err = store.CheckAndRecord(ctx, outpoint)
	if err != nil {
		t.Fatalf("check and record: %s", err)
	}
	if claimed {
		t.Fatal("expected second CheckAndRecord to be rejected as already seen")
	}
}

func TestStore_IsKnown(t *testing.T) {
	store := New(fakePool(map[string]bool{}), "test")
	ctx := context.Background()
	outpoint := testOutpoint(2)

	known, err := store.IsKnown(ctx, outpoint)
	if err != nil {
		t.Fatalf("is known: %s", err)
	}
	if known {
		t.Fatal("expected outpoint to be unknown before recording")
	}

	if _, err := store.CheckAndRecord(ctx, outpoint); err != nil {
		t.Fatalf("check and record: %s", err)
	}

	known, err = store.IsKnown(ctx, outpoint)
	if err != nil {
		t.Fatalf("is known: %s", err)
	}
	if !known {
		t.Fatal("expected outpoint to be known after recording")
	}
}

func TestStore_DistinctOutpointsDoNotCollide(t *testing.T) {
	store := New(fakePool(map[string]bool{}), "test")
	ctx := context.Background()

	a := testOutpoint(3)
	b := testOutpoint(4)

	if _, err := store.CheckAndRecord(ctx, a); err != nil {
		t.Fatalf("check and record a: %s", err)
	}

	claimed, err := store.CheckAndRecord(ctx, b)
	if err != nil {
		t.Fatalf("check and record b: %s", err)
	}
	if !claimed {
		t.Fatal("expected distinct outpoint to be claimable independently")
	}
}
