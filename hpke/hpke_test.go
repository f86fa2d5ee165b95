package hpke

import (
	"bytes"
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
)

func TestSealA_OpenA_RoundTrip(t *testing.T) {
	receiver, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate receiver keypair: %s", err)
	}

	sender, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender ephemeral keypair: %s", err)
	}

	plaintext := []byte("cHNidAEA... base64 original psbt\npj=https://example.com")

	sealed, err := SealA(plaintext, sender, receiver.Public)
	if err != nil {
		t.Fatalf("seal: %s", err)
	}

	opened, e, err := OpenA(sealed, receiver)
	if err != nil {
		t.Fatalf("open: %s", err)
	}

	if !bytes.Equal(opened, plaintext) {
		t.Errorf("got %q, want %q", opened, plaintext)
	}

	if !e.Equal(sender.Public) {
		t.Error("recovered ephemeral public key does not match sender's")
	}
}

func TestSealB_OpenB_RoundTrip(t *testing.T) {
	receiver, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate receiver keypair: %s", err)
	}

	sender, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender ephemeral keypair: %s", err)
	}

	plaintext := []byte("cHNidAEA... payjoin proposal psbt")

	sealed, err := SealB(plaintext, receiver, sender.Public)
	if err != nil {
		t.Fatalf("seal: %s", err)
	}

	opened, err := OpenB(sealed, sender, receiver.Public)
	if err != nil {
		t.Fatalf("open: %s", err)
	}

	if !bytes.Equal(opened, plaintext) {
		t.Errorf("got %q, want %q", opened, plaintext)
	}
}

func TestOpenA_RejectsTamperedCiphertext(t *testing.T) {
	receiver, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate receiver keypair: %s", err)
	}
	sender, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender ephemeral keypair: %s", err)
	}

	sealed, err := SealA([]byte("payload"), sender, receiver.Public)
	if err != nil {
		t.Fatalf("seal: %s", err)
	}

	sealed[len(sealed)-1] ^= 0xff

	if _, _, err := OpenA(sealed, receiver); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}

func TestOpenA_DirectionMismatchFailsToOpen(t *testing.T) {
	receiver, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate receiver keypair: %s", err)
	}
	sender, err := GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate sender ephemeral keypair: %s", err)
	}

	// A response-direction seal should not open as a request, since the two directions derive
	// different keys from the same shared secret.
	sealed, err := SealB([]byte("payload"), receiver, sender.Public)
	if err != nil {
		t.Fatalf("seal: %s", err)
	}

	prefixed := append(sender.Public.Bytes(), sealed...)
	if _, _, err := OpenA(prefixed, receiver); err == nil {
		t.Fatal("expected response-direction payload to fail opening as a request")
	}
}
