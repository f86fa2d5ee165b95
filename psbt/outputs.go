package psbt

import (
	"bytes"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

// OutputAddress returns the address the output at index pays to.
func (p *Proposal) OutputAddress(index int) (bitcoin.RawAddress, error) {
	if index < 0 || index >= len(p.MsgTx.TxOut) {
		return bitcoin.RawAddress{}, errors.New("output index out of range")
	}
	return bitcoin.RawAddressFromLockingScript(p.MsgTx.TxOut[index].LockingScript)
}

// AddOutput appends an output with the given locking script and value.
func (p *Proposal) AddOutput(lockingScript bitcoin.Script, value uint64, isReceiverOutput, isDrain bool) error {
	p.MsgTx.AddTxOut(&wire.TxOut{Value: value, LockingScript: lockingScript})
	p.Outputs = append(p.Outputs, &OutputInfo{
		IsReceiverOutput: isReceiverOutput,
		IsDrain:          isDrain,
	})
	return nil
}

// AddPaymentOutput appends an output paying address, rejecting values under the dust limit.
func (p *Proposal) AddPaymentOutput(address bitcoin.RawAddress, value uint64, isReceiverOutput, isDrain bool) error {
	if value < p.DustLimit {
		return newError(ErrorCodeBelowDustValue, "")
	}

	script, err := address.LockingScript()
	if err != nil {
		return errors.Wrap(err, "locking script")
	}

	return p.AddOutput(script, value, isReceiverOutput, isDrain)
}

// MarkDrain designates the output at index as the drain output absorbing fee adjustments.
// Only one output may be the drain at a time; a previous designation is cleared.
func (p *Proposal) MarkDrain(index int) error {
	if index < 0 || index >= len(p.Outputs) {
		return errors.New("output index out of range")
	}

	for _, out := range p.Outputs {
		out.IsDrain = false
	}
	p.Outputs[index].IsDrain = true
	return nil
}

// ReplaceOutputScript rewrites the locking script of the output at index, leaving its value and
// flags untouched. This is how the receiver substitutes its own receiving address for the one
// the sender originally proposed, per the output-substitution step of proposal construction: the
// amount the sender is paying does not change, only where it goes.
func (p *Proposal) ReplaceOutputScript(index int, lockingScript bitcoin.Script) error {
	if index < 0 || index >= len(p.MsgTx.TxOut) {
		return errors.New("output index out of range")
	}

	p.MsgTx.TxOut[index].LockingScript = lockingScript
	return nil
}

// RemoveOutput removes the output at index along with its supplemental data.
func (p *Proposal) RemoveOutput(index int) error {
	if index < 0 || index >= len(p.Outputs) || index >= len(p.MsgTx.TxOut) {
		return errors.New("output index out of range")
	}

	p.Outputs = append(p.Outputs[:index], p.Outputs[index+1:]...)
	p.MsgTx.TxOut = append(p.MsgTx.TxOut[:index], p.MsgTx.TxOut[index+1:]...)
	return nil
}

// FindOutputByScript returns the index of the first output whose locking script equals script,
// or -1 if none matches.
func (p *Proposal) FindOutputByScript(script bitcoin.Script) int {
	for i, out := range p.MsgTx.TxOut {
		if bytes.Equal(out.LockingScript, script) {
			return i
		}
	}
	return -1
}

// AddValueToOutput adds value to the output at index.
func (p *Proposal) AddValueToOutput(index int, value uint64) error {
	if index < 0 || index >= len(p.MsgTx.TxOut) {
		return errors.New("output index out of range")
	}

	p.MsgTx.TxOut[index].Value += value
	return nil
}
