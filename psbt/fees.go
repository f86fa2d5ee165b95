package psbt

import (
	"github.com/btcjoin/receiver/wire"
)

const (
	// MaximumP2PKHInputSize is the worst-case serialized size, in bytes, of a signed P2PKH
	// input:
	//   outpoint (36) + script size (1) + signature push (74) + pubkey push (34) + sequence (4)
	MaximumP2PKHInputSize = 32 + 4 + 1 + 74 + 34 + 4

	// OutputBaseSize is the size of an output not including its locking script.
	OutputBaseSize = 8

	// P2PKHOutputSize is the serialized size of a standard P2PKH output.
	P2PKHOutputSize = OutputBaseSize + 26

	// BaseTxSize is the size of a transaction not counting its inputs and outputs (version +
	// locktime).
	BaseTxSize = 8
)

// InputValue returns the sum of the values behind every input.
func (p *Proposal) InputValue() uint64 {
	var result uint64
	for _, in := range p.Inputs {
		result += in.Value
	}
	return result
}

// OutputValue returns the sum of every output's value. When includeDrain is false the drain
// output, if any, is excluded, mirroring how a sender computes the payment amount it expects to
// see unchanged.
func (p *Proposal) OutputValue(includeDrain bool) uint64 {
	var result uint64
	for i, out := range p.MsgTx.TxOut {
		if includeDrain || !p.Outputs[i].IsDrain {
			result += out.Value
		}
	}
	return result
}

// Fee returns the difference between total input value and total output value. It is only
// meaningful once every input's InputInfo has been populated.
func (p *Proposal) Fee() uint64 {
	in := p.InputValue()
	out := p.OutputValue(true)
	if out > in {
		return 0
	}
	return in - out
}

// EstimatedSize returns the estimated serialized size in bytes of the transaction once every
// input carries a signature, assuming unsigned inputs are P2PKH.
func (p *Proposal) EstimatedSize() int {
	result := BaseTxSize +
		wire.VarIntSerializeSize(uint64(len(p.MsgTx.TxIn))) +
		wire.VarIntSerializeSize(uint64(len(p.MsgTx.TxOut)))

	for _, in := range p.MsgTx.TxIn {
		if len(in.UnlockingScript) > 0 {
			result += in.SerializeSize()
		} else {
			result += MaximumP2PKHInputSize
		}
	}

	for _, out := range p.MsgTx.TxOut {
		result += out.SerializeSize()
	}

	return result
}

// EstimatedFee returns the fee required to pay feeRate (satoshis per byte) against the
// estimated post-signing size.
func (p *Proposal) EstimatedFee(feeRate float64) uint64 {
	return uint64(float64(p.EstimatedSize()) * feeRate)
}

// EffectiveFeeRate returns the fee rate, in satoshis per byte, the transaction currently pays
// given its estimated post-signing size. Receivers use this to enforce the sender-supplied
// min_fee_rate and the receiver's own max_effective_fee_rate ceiling.
func (p *Proposal) EffectiveFeeRate() float64 {
	size := p.EstimatedSize()
	if size == 0 {
		return 0
	}
	return float64(p.Fee()) / float64(size)
}

// AdjustDrainForFee moves amount (positive to raise the fee, negative to lower it) out of or
// into the drain output. It returns an error tagged ErrorCodeBelowDustValue if the drain cannot
// absorb the adjustment without falling under the dust limit, and ErrorCodeInsufficientValue if
// there is no drain output at all.
func (p *Proposal) AdjustDrainForFee(amount int64) error {
	if amount == 0 {
		return nil
	}

	drainIndex := p.DrainOutputIndex()
	if drainIndex == -1 {
		return newError(ErrorCodeInsufficientValue, "no drain output for fee adjustment")
	}

	drain := p.MsgTx.TxOut[drainIndex]

	if amount > 0 {
		if drain.Value < uint64(amount) {
			return newError(ErrorCodeInsufficientValue, "drain output too small for fee increase")
		}
		drain.Value -= uint64(amount)
	} else {
		drain.Value += uint64(-amount)
	}

	if drain.Value < p.DustLimit {
		return newError(ErrorCodeBelowDustValue, "drain output below dust limit after fee adjustment")
	}

	return nil
}
