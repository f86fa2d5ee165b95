// Package psbt is a minimal stand-in for a partially-signed-transaction library: it wraps a
// wire.MsgTx with the extra per-input/output data a receiver needs (the value and locking
// script behind each input, which outputs are the receiver's own) that isn't present in the
// wire encoding itself.
package psbt

import (
	"bytes"
	"encoding/base64"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

const (
	DefaultVersion = int32(2)

	// DustLimit is the minimum value, in satoshis, an output may carry before miners refuse to
	// relay it. Kept as a package default; callers may override per Proposal.
	DustLimit = uint64(546)
)

// InputInfo carries the data about a spent output that isn't part of the signed input itself:
// the value and locking script the previous output had to have for the input's signature to
// validate.
type InputInfo struct {
	LockingScript bitcoin.Script
	Value         uint64

	// Signed is true once this input carries a finalized unlocking script. Original PSBT
	// inputs arrive already signed; receiver-contributed inputs start false.
	Signed bool

	// ContributedByReceiver marks inputs added during WantsInputs, as opposed to the sender's
	// original inputs.
	ContributedByReceiver bool
}

// OutputInfo carries bookkeeping for an output that isn't part of the wire encoding.
type OutputInfo struct {
	// IsReceiverOutput marks an output identified as paying the receiver.
	IsReceiverOutput bool

	// IsDrain marks the one receiver output absorbing fee adjustments after input
	// contribution; it is never below DustLimit after finalization succeeds.
	IsDrain bool
}

// Proposal is a transaction under construction plus the supplemental data needed to reason
// about fees, dust and ownership without consulting the network.
type Proposal struct {
	MsgTx   *wire.MsgTx
	Inputs  []*InputInfo
	Outputs []*OutputInfo

	DustLimit uint64
}

// NewProposal creates an empty Proposal ready to accumulate inputs and outputs.
func NewProposal() *Proposal {
	return &Proposal{
		MsgTx:     &wire.MsgTx{Version: DefaultVersion, LockTime: 0},
		DustLimit: DustLimit,
	}
}

// Clone returns a deep copy so the caller can explore a tentative edit (e.g. a rejected output
// substitution) without mutating the original state value.
func (p *Proposal) Clone() *Proposal {
	result := &Proposal{
		MsgTx: &wire.MsgTx{
			Version:  p.MsgTx.Version,
			LockTime: p.MsgTx.LockTime,
		},
		DustLimit: p.DustLimit,
	}

	for _, in := range p.MsgTx.TxIn {
		cp := *in
		result.MsgTx.TxIn = append(result.MsgTx.TxIn, &cp)
	}
	for _, out := range p.MsgTx.TxOut {
		cp := *out
		result.MsgTx.TxOut = append(result.MsgTx.TxOut, &cp)
	}
	for _, in := range p.Inputs {
		cp := *in
		result.Inputs = append(result.Inputs, &cp)
	}
	for _, out := range p.Outputs {
		cp := *out
		result.Outputs = append(result.Outputs, &cp)
	}

	return result
}

// FromBase64 parses the base64 encoding of a raw bitcoin transaction as used on the BIP-78
// wire (the "Original PSBT" line). Supplemental per-input data (value, locking script) is not
// present in the wire transaction and must be filled in separately by the caller via
// SetInputInfo, using data the receiver already has (its own UTXO set) or that the sender's
// payload otherwise communicates out of band.
func FromBase64(encoded string) (*Proposal, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode")
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "deserialize tx")
	}

	result := &Proposal{
		MsgTx:     tx,
		Inputs:    make([]*InputInfo, len(tx.TxIn)),
		Outputs:   make([]*OutputInfo, len(tx.TxOut)),
		DustLimit: DustLimit,
	}

	for i := range result.Inputs {
		result.Inputs[i] = &InputInfo{}
	}
	for i := range result.Outputs {
		result.Outputs[i] = &OutputInfo{}
	}

	return result, nil
}

// SetInputInfo fills in the supplemental data for an already-present input. It does not add an
// input; use AddInput for that.
func (p *Proposal) SetInputInfo(index int, lockingScript bitcoin.Script, value uint64) error {
	if index < 0 || index >= len(p.Inputs) {
		return errors.New("input index out of range")
	}

	p.Inputs[index].LockingScript = lockingScript
	p.Inputs[index].Value = value
	return nil
}

// Base64 returns the base64 encoding of the serialized transaction, the form carried on the
// BIP-78 wire.
func (p *Proposal) Base64() (string, error) {
	var buf bytes.Buffer
	if err := p.MsgTx.Serialize(&buf); err != nil {
		return "", errors.Wrap(err, "serialize tx")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// TxID returns the transaction's txid.
func (p *Proposal) TxID() *bitcoin.Hash32 {
	return p.MsgTx.TxHash()
}

// InputIsSigned reports whether the input at index already carries a finalized unlocking
// script (true for the sender's own Original PSBT inputs once they are signed).
func (p *Proposal) InputIsSigned(index int) bool {
	if index < 0 || index >= len(p.MsgTx.TxIn) {
		return false
	}
	return len(p.MsgTx.TxIn[index].UnlockingScript) > 0
}

// ReceiverOutputIndexes returns the indexes of outputs flagged as paying the receiver.
func (p *Proposal) ReceiverOutputIndexes() []int {
	var result []int
	for i, out := range p.Outputs {
		if out.IsReceiverOutput {
			result = append(result, i)
		}
	}
	return result
}

// DrainOutputIndex returns the index of the output flagged as the fee-adjustment drain, or -1.
func (p *Proposal) DrainOutputIndex() int {
	for i, out := range p.Outputs {
		if out.IsDrain {
			return i
		}
	}
	return -1
}

// MinInputValue returns the smallest input value in the transaction.
func (p *Proposal) MinInputValue() uint64 {
	var min uint64
	first := true
	for _, in := range p.Inputs {
		if first || in.Value < min {
			min = in.Value
			first = false
		}
	}
	return min
}

// MinOutputValue returns the smallest output value in the transaction.
func (p *Proposal) MinOutputValue() uint64 {
	var min uint64
	first := true
	for _, out := range p.MsgTx.TxOut {
		if first || out.Value < min {
			min = out.Value
			first = false
		}
	}
	return min
}
