// Package ohttp implements the Oblivious HTTP-style envelope the receiver uses to reach the
// store-and-forward directory without revealing its own network identity to the directory, and
// without revealing the directory's identity to the relay. No OHTTP client library appears
// anywhere in the retrieval pack, so this is a from-scratch, minimal envelope built the way the
// spec describes it: a fixed-size sealed request the relay forwards blind, composed on top of
// this repo's hpke package rather than a conformant RFC 9458 implementation.
package ohttp

import (
	"encoding/binary"
	"encoding/hex"
	"net/url"
	"path"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/hpke"

	"github.com/pkg/errors"
)

// EncapsulatedMessageBytes is the fixed length of every encapsulated message regardless of the
// inner request's size, so a network observer between client and relay learns nothing about the
// size of the request being relayed. Requests whose sealed framing would exceed this bound fail
// to encapsulate rather than silently truncate.
const EncapsulatedMessageBytes = 2048

// lengthPrefixSize is the size of the big-endian length prefix recording how much of the fixed
// envelope is real sealed data versus padding.
const lengthPrefixSize = 2

// Keys is the relay's OHTTP key configuration. ConfigID and GatewayPublicKey identify which
// gateway keypair requests are sealed to; RequestCounter is mutated by Encapsulate and exists
// purely as client-side replay-protection bookkeeping — it is never transmitted.
type Keys struct {
	ConfigID       byte
	GatewayPublicKey bitcoin.PublicKey
	RequestCounter uint64
}

// ClientResponseContext is returned by Encapsulate and must be passed back to ProcessGetResponse
// / ProcessPostResponse to decapsulate the matching response. It holds the per-request ephemeral
// keypair generated for this single request/response pair; it is not reused across requests.
type ClientResponseContext struct {
	ephemeral     hpke.KeyPair
	gatewayPublic bitcoin.PublicKey
}

// Encapsulate wraps a single HTTP-ish request (method, absolute target URL, optional body) into
// a fixed-size sealed envelope addressed to the relay's gateway key. Only the relay's own
// scheme+authority is visible outside the envelope; method, target and body are sealed.
func Encapsulate(keys *Keys, method, targetURL string, body []byte) ([]byte, *ClientResponseContext, error) {
	keys.RequestCounter++

	ephemeral, err := hpke.GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate ephemeral keypair")
	}

	inner := encodeInnerRequest(method, targetURL, body)

	sealed, err := hpke.SealA(inner, ephemeral, keys.GatewayPublicKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "seal request")
	}

	if lengthPrefixSize+len(sealed) > EncapsulatedMessageBytes {
		return nil, nil, errors.Errorf("sealed request %d bytes exceeds envelope capacity %d",
			len(sealed), EncapsulatedMessageBytes-lengthPrefixSize)
	}

	envelope := make([]byte, EncapsulatedMessageBytes)
	binary.BigEndian.PutUint16(envelope, uint16(len(sealed)))
	copy(envelope[lengthPrefixSize:], sealed)

	ctx := &ClientResponseContext{ephemeral: ephemeral, gatewayPublic: keys.GatewayPublicKey}
	return envelope, ctx, nil
}

func encodeInnerRequest(method, targetURL string, body []byte) []byte {
	header := method + " " + targetURL + "\n"
	result := make([]byte, 0, len(header)+len(body))
	result = append(result, header...)
	result = append(result, body...)
	return result
}

// ProcessGetResponse decapsulates a GET response envelope. A nil, nil return means the relay
// and directory accepted the poll but no sender payload is available yet; a non-nil body is the
// recovered directory payload.
func ProcessGetResponse(envelope []byte, ctx *ClientResponseContext) ([]byte, error) {
	sealed, ok := trimEnvelope(envelope)
	if !ok {
		return nil, errors.New("malformed envelope")
	}

	if len(sealed) == 0 {
		return nil, nil
	}

	body, err := hpke.OpenB(sealed, ctx.ephemeral, ctx.gatewayPublic)
	if err != nil {
		return nil, errors.Wrap(err, "open response")
	}

	return body, nil
}

// ProcessPostResponse decapsulates a POST/PUT response envelope and confirms the directory
// accepted the write. Any non-empty recovered body that does not decode as a 2xx acknowledgement
// is treated as a rejection.
func ProcessPostResponse(envelope []byte, ctx *ClientResponseContext) error {
	sealed, ok := trimEnvelope(envelope)
	if !ok {
		return errors.New("malformed envelope")
	}

	if len(sealed) == 0 {
		return nil
	}

	body, err := hpke.OpenB(sealed, ctx.ephemeral, ctx.gatewayPublic)
	if err != nil {
		return errors.Wrap(err, "open response")
	}

	if len(body) > 0 && body[0] != '2' {
		return errors.Errorf("directory rejected write: %s", string(body))
	}

	return nil
}

func trimEnvelope(envelope []byte) ([]byte, bool) {
	if len(envelope) < lengthPrefixSize {
		return nil, false
	}

	n := int(binary.BigEndian.Uint16(envelope[:lengthPrefixSize]))
	if lengthPrefixSize+n > len(envelope) {
		return nil, false
	}

	return envelope[lengthPrefixSize : lengthPrefixSize+n], true
}

// FullRelayURL builds the outer URL a request is actually sent to: the relay's own
// scheme+authority, with the directory's scheme+authority+path folded in as a single
// URL-encoded path segment. This is what keeps the relay ignorant of which directory it is
// fronting.
func FullRelayURL(relay, directory *url.URL) (*url.URL, error) {
	if relay == nil || directory == nil {
		return nil, errors.New("relay and directory URLs are required")
	}

	encodedDirectory := url.PathEscape(directory.String())

	result := &url.URL{
		Scheme: relay.Scheme,
		Host:   relay.Host,
		Path:   path.Join("/", encodedDirectory),
	}

	return result, nil
}

// ShortID returns the first 8 bytes of SHA-256 of pub's compressed encoding, the session and
// sender subdirectory identifier used throughout the directory paths.
func ShortID(pub bitcoin.PublicKey) [8]byte {
	digest := bitcoin.Sha256(pub.Bytes())

	var id [8]byte
	copy(id[:], digest[:8])
	return id
}

// ShortIDHex is ShortID lower-hex-encoded, the form used in directory paths.
func ShortIDHex(pub bitcoin.PublicKey) string {
	id := ShortID(pub)
	return hex.EncodeToString(id[:])
}
