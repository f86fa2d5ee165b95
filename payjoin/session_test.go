package payjoin

import (
	"net/url"
	"testing"
	"time"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/ohttp"
)

func testSession(t *testing.T) *SessionContext {
	t.Helper()

	key, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}
	address, err := key.RawAddress()
	if err != nil {
		t.Fatalf("raw address: %s", err)
	}

	gatewayKey, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate gateway key: %s", err)
	}

	directory, err := url.Parse("https://directory.example.com/session")
	if err != nil {
		t.Fatalf("parse directory url: %s", err)
	}

	ctx, err := NewReceiver(address, directory, &ohttp.Keys{GatewayPublicKey: gatewayKey.PublicKey()}, 0)
	if err != nil {
		t.Fatalf("new receiver: %s", err)
	}
	return ctx
}

// TestSessionContext_IDEqualsTruncatedSHA256 covers spec.md invariant 1.
func TestSessionContext_IDEqualsTruncatedSHA256(t *testing.T) {
	ctx := testSession(t)

	want := ohttp.ShortID(ctx.S.Public)
	if ctx.ID() != want {
		t.Errorf("got ID %x, want %x", ctx.ID(), want)
	}
}

// TestNewReceiver_DefaultExpiry covers spec.md scenario S1.
func TestNewReceiver_DefaultExpiry(t *testing.T) {
	ctx := testSession(t)

	want := time.Now().Add(DefaultExpiry)
	if diff := ctx.Expiry.Sub(want); diff > time.Second || diff < -time.Second {
		t.Errorf("got expiry %s, want within 1s of %s", ctx.Expiry, want)
	}
}

// TestSessionContext_MarshalRoundTrip covers spec.md invariant 7 and scenario S4.
func TestSessionContext_MarshalRoundTrip(t *testing.T) {
	ctx := testSession(t)

	senderKey, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender key: %s", err)
	}
	senderPub := senderKey.PublicKey()
	if err := ctx.SetSenderEphemeral(senderPub); err != nil {
		t.Fatalf("set sender ephemeral: %s", err)
	}

	data, err := ctx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}

	var restored SessionContext
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %s", err)
	}

	if !restored.Address.Equal(ctx.Address) {
		t.Error("address did not round-trip")
	}
	if restored.Directory.String() != ctx.Directory.String() {
		t.Errorf("got directory %s, want %s", restored.Directory, ctx.Directory)
	}
	if !restored.S.Public.Equal(ctx.S.Public) {
		t.Error("session public key did not round-trip")
	}
	if !restored.S.Private.Equal(ctx.S.Private) {
		t.Error("session private key did not round-trip")
	}
	if restored.E == nil || !restored.E.Equal(*ctx.E) {
		t.Error("sender ephemeral key did not round-trip")
	}
	if restored.ID() != ctx.ID() {
		t.Errorf("got ID %x, want %x", restored.ID(), ctx.ID())
	}
}

func TestSessionContext_SetSenderEphemeral_RejectsChange(t *testing.T) {
	ctx := testSession(t)

	first, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}
	if err := ctx.SetSenderEphemeral(first.PublicKey()); err != nil {
		t.Fatalf("set sender ephemeral: %s", err)
	}

	// Setting the same key again must be a no-op.
	if err := ctx.SetSenderEphemeral(first.PublicKey()); err != nil {
		t.Fatalf("re-set with same key: %s", err)
	}

	second, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}
	if err := ctx.SetSenderEphemeral(second.PublicKey()); err == nil {
		t.Fatal("expected error when sender ephemeral key changes mid-session")
	}
}

// TestSessionContext_PjURI covers spec.md scenario S5.
func TestSessionContext_PjURI(t *testing.T) {
	ctx := testSession(t)

	uri := ctx.PjURI()
	if len(uri) == 0 {
		t.Fatal("empty PjURI")
	}
	if uri[:8] != "bitcoin:" {
		t.Errorf("got %q, want it to start with bitcoin:", uri)
	}
}

// TestSessionContext_CheckExpiry_Expired covers spec.md scenario S6.
func TestSessionContext_CheckExpiry_Expired(t *testing.T) {
	ctx := testSession(t)
	ctx.Expiry = time.Now().Add(-time.Second)

	if err := ctx.CheckExpiry(time.Now()); err == nil {
		t.Fatal("expected Expired error past the session's expiry")
	}
}
