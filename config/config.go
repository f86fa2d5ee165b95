// Package config loads the receiver's runtime configuration from the environment, the way every
// tokenized-pkg daemon does: a plain struct tagged with envconfig/default, processed by
// github.com/kelseyhightower/envconfig, grounded on spynode/cmd/spynoded/main.go's `envconfig.Process`
// call and spynode/client/config.go's tagging style.
package config

import (
	"encoding/hex"
	"time"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/ohttp"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds every setting the receiver needs to run: where the directory and relay are, the
// receiver's own payout address, the fee-rate bounds invariant 7 enforces, how long an
// unfinalized session is kept before it is considered abandoned, and where session/replay-guard
// state is persisted.
type Config struct {
	Directory  string `envconfig:"DIRECTORY_URL" json:"directory_url"`
	OhttpRelay string `envconfig:"OHTTP_RELAY_URL" json:"ohttp_relay_url"`

	OhttpGatewayPublicKey string `envconfig:"OHTTP_GATEWAY_PUBLIC_KEY" json:"ohttp_gateway_public_key"`
	OhttpConfigID         byte   `default:"1" envconfig:"OHTTP_CONFIG_ID" json:"ohttp_config_id"`

	ReceiverAddress string `envconfig:"RECEIVER_ADDRESS" json:"receiver_address"`

	MinFeeRateSatPerVByte          float64 `default:"1.0" envconfig:"MIN_FEE_RATE_SAT_PER_VBYTE" json:"min_fee_rate_sat_per_vbyte"`
	MaxEffectiveFeeRateSatPerVByte float64 `default:"100.0" envconfig:"MAX_EFFECTIVE_FEE_RATE_SAT_PER_VBYTE" json:"max_effective_fee_rate_sat_per_vbyte"`

	DefaultExpirySeconds int `default:"86400" envconfig:"DEFAULT_EXPIRY_SECONDS" json:"default_expiry_seconds"`

	RedisURL              string `envconfig:"REDIS_URL" json:"redis_url"`
	SessionStoreS3Bucket  string `default:"standalone" envconfig:"SESSION_STORE_S3_BUCKET" json:"session_store_s3_bucket"`
	SessionStoreS3Root    string `envconfig:"SESSION_STORE_S3_ROOT" json:"session_store_s3_root"`
	SessionStoreFilesystemRoot string `default:"./tmp/sessions" envconfig:"SESSION_STORE_FILESYSTEM_ROOT" json:"session_store_filesystem_root"`

	MaxContentLength int64 `default:"102400" envconfig:"MAX_CONTENT_LENGTH" json:"max_content_length"`
}

// DefaultExpiry is DefaultExpirySeconds as a time.Duration.
func (c Config) DefaultExpiry() time.Duration {
	return time.Duration(c.DefaultExpirySeconds) * time.Second
}

// Load processes environment variables (with the "RECEIVER" prefix, matching
// spynode/cmd/spynoded/main.go's `envconfig.Process("Node", &cfg)` per-section convention) into a
// Config, validates the required fields, and parses ReceiverAddress into a bitcoin.RawAddress.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("RECEIVER", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the fields required for the receiver to run at all are present and
// well-formed.
func (c Config) Validate() error {
	if len(c.Directory) == 0 {
		return errors.New("DIRECTORY_URL is required")
	}
	if len(c.OhttpRelay) == 0 {
		return errors.New("OHTTP_RELAY_URL is required")
	}
	if len(c.ReceiverAddress) == 0 {
		return errors.New("RECEIVER_ADDRESS is required")
	}
	if _, err := c.ParseReceiverAddress(); err != nil {
		return errors.Wrap(err, "RECEIVER_ADDRESS")
	}
	if len(c.OhttpGatewayPublicKey) == 0 {
		return errors.New("OHTTP_GATEWAY_PUBLIC_KEY is required")
	}
	if _, err := c.ParseOhttpKeys(); err != nil {
		return errors.Wrap(err, "OHTTP_GATEWAY_PUBLIC_KEY")
	}
	if c.MinFeeRateSatPerVByte <= 0 {
		return errors.New("MIN_FEE_RATE_SAT_PER_VBYTE must be positive")
	}
	if c.MaxEffectiveFeeRateSatPerVByte < c.MinFeeRateSatPerVByte {
		return errors.New("MAX_EFFECTIVE_FEE_RATE_SAT_PER_VBYTE must not be below MIN_FEE_RATE_SAT_PER_VBYTE")
	}

	return nil
}

// ParseReceiverAddress decodes ReceiverAddress into a bitcoin.RawAddress.
func (c Config) ParseReceiverAddress() (bitcoin.RawAddress, error) {
	address, err := bitcoin.DecodeAddress(c.ReceiverAddress)
	if err != nil {
		return bitcoin.RawAddress{}, err
	}

	return bitcoin.NewRawAddressFromAddress(address), nil
}

// ParseOhttpKeys decodes OhttpGatewayPublicKey into the ohttp.Keys configuration a directory.Client
// needs to encapsulate requests to the relay's gateway.
func (c Config) ParseOhttpKeys() (*ohttp.Keys, error) {
	raw, err := hex.DecodeString(c.OhttpGatewayPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}

	gatewayKey, err := bitcoin.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}

	return &ohttp.Keys{ConfigID: c.OhttpConfigID, GatewayPublicKey: gatewayKey}, nil
}
