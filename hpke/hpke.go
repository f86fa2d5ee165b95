// Package hpke implements the sealed-payload primitive the receiver state machine uses to
// exchange Original PSBT / Payjoin Proposal bodies with a sender through an untrusted directory.
// It is HPKE-like rather than a conformant RFC 9180 implementation: it composes the same
// building blocks (an ECDH shared secret, HKDF key derivation, an AEAD) the way HPKE's Base mode
// does, grounded on the elliptic-curve Diffie-Hellman already available in this repo's bitcoin
// package rather than importing a dedicated (and, in this dependency set, unavailable) HPKE
// library.
package hpke

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/btcjoin/receiver/bitcoin"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// nonceSize is the ChaCha20-Poly1305 nonce length.
	nonceSize = chacha20poly1305.NonceSize

	// compressedPubKeySize is the length of a compressed secp256k1 public key, used as the
	// encapsulated-key prefix on request-direction (sender-initiated) messages.
	compressedPubKeySize = 33
)

// direction labels the HKDF info parameter so the two halves of a session (sender-to-receiver,
// receiver-to-sender) never derive the same symmetric key from the same ECDH shared secret.
type direction byte

const (
	directionRequest  direction = 'A' // sender -> receiver
	directionResponse direction = 'B' // receiver -> sender
)

// KeyPair is a receiver's long-term HPKE-like keypair, derived from a secp256k1 key the same way
// any other bitcoin.Key is.
type KeyPair struct {
	Private bitcoin.Key
	Public  bitcoin.PublicKey
}

// GenerateKeyPair creates a fresh keypair for a new session.
func GenerateKeyPair(net bitcoin.Network) (KeyPair, error) {
	key, err := bitcoin.GenerateKey(net)
	if err != nil {
		return KeyPair{}, errors.Wrap(err, "generate key")
	}

	return KeyPair{Private: key, Public: key.PublicKey()}, nil
}

func randomNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "random nonce")
	}
	return nonce, nil
}

func deriveAEAD(secret []byte, dir direction) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, secret, nil, []byte{byte(dir)})

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Wrap(err, "derive key")
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "build aead")
	}

	return aead, nil
}

// OpenA opens a sealed request-direction payload, recovering both the plaintext body and the
// sender's ephemeral public key embedded at the front of the message. The caller must record the
// returned public key on the session and use it for every subsequent SealB call; a session whose
// embedded key differs from a previously recorded one should be rejected by the caller (HPKE
// state invariant: the sender's ephemeral key is set-once-per-session).
func OpenA(sealed []byte, s KeyPair) (body []byte, e bitcoin.PublicKey, err error) {
	if len(sealed) < compressedPubKeySize+nonceSize {
		return nil, bitcoin.PublicKey{}, errors.New("sealed message too short")
	}

	ePub, err := bitcoin.PublicKeyFromBytes(sealed[:compressedPubKeySize])
	if err != nil {
		return nil, bitcoin.PublicKey{}, errors.Wrap(err, "decode ephemeral public key")
	}

	secret, err := bitcoin.ECDHSecret(s.Private, ePub)
	if err != nil {
		return nil, bitcoin.PublicKey{}, errors.Wrap(err, "ecdh")
	}

	aead, err := deriveAEAD(secret, directionRequest)
	if err != nil {
		return nil, bitcoin.PublicKey{}, err
	}

	rest := sealed[compressedPubKeySize:]
	nonce := rest[:nonceSize]
	ciphertext := rest[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, bitcoin.PublicKey{}, errors.Wrap(err, "open")
	}

	return plaintext, ePub, nil
}

// SealB seals a response-direction payload to the sender's already-known ephemeral public key e,
// using the receiver's long-term keypair s. No fresh ephemeral key is generated here: once e is
// established by a prior OpenA call, every response in the session reuses the same ECDH shared
// secret, distinguished from the request direction only by the HKDF info label.
func SealB(body []byte, s KeyPair, e bitcoin.PublicKey) ([]byte, error) {
	secret, err := bitcoin.ECDHSecret(s.Private, e)
	if err != nil {
		return nil, errors.Wrap(err, "ecdh")
	}

	aead, err := deriveAEAD(secret, directionResponse)
	if err != nil {
		return nil, err
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, body, nil)

	result := make([]byte, 0, nonceSize+len(ciphertext))
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// SealA seals a request-direction payload from an ephemeral keypair eph to the recipient's
// long-term public key s, embedding eph's compressed public key so the recipient can recover it
// via OpenA. Used by tests and by any caller emulating the sender side of the protocol.
func SealA(body []byte, eph KeyPair, s bitcoin.PublicKey) ([]byte, error) {
	secret, err := bitcoin.ECDHSecret(eph.Private, s)
	if err != nil {
		return nil, errors.Wrap(err, "ecdh")
	}

	aead, err := deriveAEAD(secret, directionRequest)
	if err != nil {
		return nil, err
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, body, nil)

	result := make([]byte, 0, compressedPubKeySize+nonceSize+len(ciphertext))
	result = append(result, eph.Public.Bytes()...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// OpenB opens a sealed response-direction payload using the sender's ephemeral keypair and the
// receiver's known long-term public key.
func OpenB(sealed []byte, eph KeyPair, s bitcoin.PublicKey) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed message too short")
	}

	secret, err := bitcoin.ECDHSecret(eph.Private, s)
	if err != nil {
		return nil, errors.Wrap(err, "ecdh")
	}

	aead, err := deriveAEAD(secret, directionResponse)
	if err != nil {
		return nil, err
	}

	nonce := sealed[:nonceSize]
	ciphertext := sealed[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	return plaintext, nil
}
