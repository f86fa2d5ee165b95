package payjoin

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/hpke"
	"github.com/btcjoin/receiver/ohttp"

	"github.com/pkg/errors"
)

// DefaultExpiry is how long a session is valid for past creation, absent an explicit override
// (spec.md S1).
const DefaultExpiry = 24 * time.Hour

// SessionContext is the per-session identity threaded, immutably except for E, through every
// stage of the receiver pipeline.
type SessionContext struct {
	Address   bitcoin.RawAddress
	Directory *url.URL
	OhttpKeys *ohttp.Keys
	Expiry    time.Time
	S         hpke.KeyPair

	// E is the sender's ephemeral HPKE public key, set once on the first successfully decrypted
	// v2 payload and read-only thereafter.
	E *bitcoin.PublicKey
}

// NewReceiver creates a fresh session. expiry of zero means DefaultExpiry from now.
func NewReceiver(address bitcoin.RawAddress, directory *url.URL, keys *ohttp.Keys,
	expiry time.Duration) (*SessionContext, error) {

	if directory == nil {
		return nil, errors.New("directory URL is required")
	}

	s, err := hpke.GenerateKeyPair(bitcoin.MainNet)
	if err != nil {
		return nil, errors.Wrap(err, "generate session keypair")
	}

	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	return &SessionContext{
		Address:   address,
		Directory: directory,
		OhttpKeys: keys,
		Expiry:    timeNow().Add(expiry),
		S:         s,
	}, nil
}

// timeNow is a var so tests can substitute a fixed clock without relying on wall-clock timing.
var timeNow = time.Now

// ID is the session identifier: the first 8 bytes of SHA-256 of the compressed form of S's
// public key (spec.md invariant 1).
func (ctx *SessionContext) ID() [8]byte {
	return ohttp.ShortID(ctx.S.Public)
}

// IDHex is ID lower-hex-encoded, as used in directory paths.
func (ctx *SessionContext) IDHex() string {
	return ohttp.ShortIDHex(ctx.S.Public)
}

// Subdirectory returns the directory URL with the given id appended as one path segment.
func (ctx *SessionContext) Subdirectory(id string) *url.URL {
	result := *ctx.Directory
	result.Path = path.Join(result.Path, id)
	return &result
}

// IsExpired reports whether now is past the session's expiry.
func (ctx *SessionContext) IsExpired(now time.Time) bool {
	return now.After(ctx.Expiry)
}

// CheckExpiry returns a *SessionError if the session has expired as of now; nil otherwise. Every
// operation that touches the network or advances the pipeline calls this first.
func (ctx *SessionContext) CheckExpiry(now time.Time) error {
	if ctx.IsExpired(now) {
		return ErrExpired(ctx.Expiry)
	}
	return nil
}

// SetSenderEphemeral records the sender's ephemeral public key on first use, and rejects a
// mismatched key on any later call (spec.md section 9's "HPKE state" design note: E is
// set-once-per-session).
func (ctx *SessionContext) SetSenderEphemeral(e bitcoin.PublicKey) error {
	if ctx.E == nil {
		ctx.E = &e
		return nil
	}

	if !ctx.E.Equal(e) {
		return errors.New("sender ephemeral key changed mid-session")
	}

	return nil
}

// PjURI renders the BIP-21-style URI a sender uses to initiate a session with this receiver
// (spec.md section 6).
func (ctx *SessionContext) PjURI() string {
	endpoint := ctx.Subdirectory(ctx.IDHex())
	query := url.Values{}
	query.Set("pjos", "1")

	endpointWithFragment := fmt.Sprintf("%s#pk=%s&ohttp=%s&exp=%d",
		endpoint.String(), ctx.S.Public.String(), ctx.ohttpKeysFragment(), ctx.Expiry.Unix())

	address := bitcoin.NewAddressFromRawAddress(ctx.Address, bitcoin.MainNet)
	return fmt.Sprintf("bitcoin:%s?pj=%s&%s", address.String(), url.QueryEscape(endpointWithFragment), query.Encode())
}

func (ctx *SessionContext) ohttpKeysFragment() string {
	if ctx.OhttpKeys == nil {
		return ""
	}
	return hex.EncodeToString(ctx.OhttpKeys.GatewayPublicKey.Bytes())
}

// marshaledSessionContext is the canonical on-the-wire form of a SessionContext, used by
// MarshalBinary/UnmarshalBinary (spec.md invariant 7 and the "Persistence" note in section 6).
type marshaledSessionContext struct {
	Address      bitcoin.RawAddress `json:"address"`
	Directory    string             `json:"directory"`
	GatewayKey   bitcoin.PublicKey  `json:"gateway_key"`
	ConfigID     byte               `json:"config_id"`
	RequestCount uint64             `json:"request_count"`
	Expiry       time.Time          `json:"expiry"`
	PrivateKey   bitcoin.Key        `json:"private_key"`
	PublicKey    bitcoin.PublicKey  `json:"public_key"`
	SenderE      *bitcoin.PublicKey `json:"sender_e,omitempty"`
}

// MarshalBinary produces the canonical persisted form of this session, the value stored under
// Token = id(s.pub) (spec.md section 6's Persistence note).
func (ctx *SessionContext) MarshalBinary() ([]byte, error) {
	m := marshaledSessionContext{
		Address:      ctx.Address,
		Directory:    ctx.Directory.String(),
		Expiry:       ctx.Expiry,
		PrivateKey:   ctx.S.Private,
		PublicKey:    ctx.S.Public,
		SenderE:      ctx.E,
	}

	if ctx.OhttpKeys != nil {
		m.GatewayKey = ctx.OhttpKeys.GatewayPublicKey
		m.ConfigID = ctx.OhttpKeys.ConfigID
		m.RequestCount = ctx.OhttpKeys.RequestCounter
	}

	return json.Marshal(m)
}

// UnmarshalBinary restores a SessionContext from its MarshalBinary form.
func (ctx *SessionContext) UnmarshalBinary(data []byte) error {
	var m marshaledSessionContext
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "unmarshal session")
	}

	directory, err := url.Parse(m.Directory)
	if err != nil {
		return errors.Wrap(err, "parse directory")
	}

	ctx.Address = m.Address
	ctx.Directory = directory
	ctx.OhttpKeys = &ohttp.Keys{
		GatewayPublicKey: m.GatewayKey,
		ConfigID:         m.ConfigID,
		RequestCounter:   m.RequestCount,
	}
	ctx.Expiry = m.Expiry
	ctx.S = hpke.KeyPair{Private: m.PrivateKey, Public: m.PublicKey}
	ctx.E = m.SenderE

	return nil
}
