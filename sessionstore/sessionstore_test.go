package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/btcjoin/receiver/storage"
)

func testToken(b byte) Token {
	var t Token
	t[0] = b
	return t
}

func TestStore_SaveLoadDelete(t *testing.T) {
	store := New(storage.NewMock(), time.Hour)
	ctx := context.Background()
	token := testToken(1)

	if _, err := store.Load(ctx, token); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, token, []byte("session bytes")); err != nil {
		t.Fatalf("save: %s", err)
	}

	got, err := store.Load(ctx, token)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if string(got) != "session bytes" {
		t.Errorf("got %q, want %q", got, "session bytes")
	}

	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("delete: %s", err)
	}

	if _, err := store.Load(ctx, token); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestToken_String(t *testing.T) {
	token := testToken(0xab)
	if len(token.String()) != 16 {
		t.Errorf("token string length = %d, want 16", len(token.String()))
	}
}
