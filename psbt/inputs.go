package psbt

import (
	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

// InputAddress returns the address paying the input at index.
func (p *Proposal) InputAddress(index int) (bitcoin.RawAddress, error) {
	if index < 0 || index >= len(p.Inputs) {
		return bitcoin.RawAddress{}, newError(ErrorCodeMissingInputData, "input index out of range")
	}
	return bitcoin.RawAddressFromLockingScript(p.Inputs[index].LockingScript)
}

func (p *Proposal) hasOutpoint(outpoint wire.OutPoint) bool {
	for _, in := range p.MsgTx.TxIn {
		if in.PreviousOutPoint.Hash.Equal(&outpoint.Hash) &&
			in.PreviousOutPoint.Index == outpoint.Index {
			return true
		}
	}
	return false
}

// AddInput appends an unsigned input spending outpoint, backed by lockScript/value, marking it
// as contributed by the receiver. Duplicate outpoints are rejected: a sender replaying one of
// its own inputs back at the receiver, or the receiver accidentally selecting a UTXO twice,
// would otherwise double count the spend.
func (p *Proposal) AddInput(outpoint wire.OutPoint, lockScript bitcoin.Script, value uint64) error {
	if p.hasOutpoint(outpoint) {
		return newError(ErrorCodeDuplicateInput, "")
	}

	p.MsgTx.AddTxIn(wire.NewTxIn(&outpoint, nil))
	p.Inputs = append(p.Inputs, &InputInfo{
		LockingScript:         lockScript,
		Value:                 value,
		ContributedByReceiver: true,
	})
	return nil
}

// AddUTXO appends an unsigned input spending utxo, marking it as contributed by the receiver.
func (p *Proposal) AddUTXO(utxo bitcoin.UTXO) error {
	return p.AddInput(wire.OutPoint{Hash: utxo.Hash, Index: utxo.Index}, utxo.LockingScript,
		utxo.Value)
}

// RemoveInput removes the input at index along with its supplemental data.
func (p *Proposal) RemoveInput(index int) error {
	if index < 0 || index >= len(p.Inputs) || index >= len(p.MsgTx.TxIn) {
		return errors.New("input index out of range")
	}

	p.Inputs = append(p.Inputs[:index], p.Inputs[index+1:]...)
	p.MsgTx.TxIn = append(p.MsgTx.TxIn[:index], p.MsgTx.TxIn[index+1:]...)
	return nil
}

// SatisfiesUIH2 reports whether adding a candidate input of candidateValue would satisfy the
// Unnecessary Input Heuristic's privacy-preserving condition: the smallest input value across
// the whole transaction must not exceed the smallest output value. A payjoin proposal that
// fails this check lets an outside observer spot the receiver's contributed input by elimination
// (BlockSci's UIH1/UIH2 analysis), so receivers prefer candidates that keep it satisfied.
func (p *Proposal) SatisfiesUIH2(candidateValue uint64) bool {
	minOutput := p.MinOutputValue()
	minInput := p.MinInputValue()

	combined := candidateValue
	if len(p.Inputs) > 0 && minInput < combined {
		combined = minInput
	}

	return combined <= minOutput
}
