package payjoin

import (
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

// CanBroadcast reports whether tx, broadcast as-is, would be accepted by the network (e.g. a
// testmempoolaccept RPC call). It returns an ImplementationError, never a bare error, so the
// caller's failure is classified correctly by the pipeline.
type CanBroadcast func(tx *wire.MsgTx) (bool, *ImplementationError)

// ExtractTxToScheduleBroadcast returns the Original PSBT's transaction as the sender submitted
// it, for an interactive-but-cautious receiver to schedule a delayed broadcast of before
// deciding whether to proceed with the Payjoin: if the sender never returns to complete the
// session, broadcasting the original anyway still pays the receiver and makes probing costly.
func (u UncheckedProposal) ExtractTxToScheduleBroadcast() *wire.MsgTx {
	return u.Proposal.MsgTx.Copy()
}

// CheckBroadcastSuitability verifies the Original PSBT would itself confirm if broadcast now,
// guarding non-interactive receivers (payment processors) against probing: a sender who can
// submit proposals at will and see a different reply for "would broadcast" vs. "wouldn't" can
// learn which UTXOs the receiver controls for free. minFeeRate, if set, additionally requires
// the Original PSBT to already clear that fee rate on its own.
func (u UncheckedProposal) CheckBroadcastSuitability(minFeeRate *float64,
	canBroadcast CanBroadcast) (*MaybeInputsOwned, *ReplyableError) {

	if err := u.Ctx.CheckExpiry(timeNow()); err != nil {
		return nil, errUnavailable(err)
	}

	ok, implErr := canBroadcast(u.Proposal.MsgTx)
	if implErr != nil {
		return nil, implErr.AsReplyable()
	}
	if !ok {
		return nil, errOriginalPSBTRejected(errors.New("original transaction would not be broadcastable"))
	}

	if minFeeRate != nil && u.Proposal.EffectiveFeeRate() < *minFeeRate {
		return nil, errOriginalPSBTRejected(errors.New("original transaction does not meet the minimum fee rate"))
	}

	return &MaybeInputsOwned{u.proposalBase}, nil
}

// AssumeInteractiveReceiver skips CheckBroadcastSuitability for wallets where a human approves
// every Payjoin manually; the probing attack CheckBroadcastSuitability defends against doesn't
// apply when there's no automated reply to observe.
func (u UncheckedProposal) AssumeInteractiveReceiver() *MaybeInputsOwned {
	return &MaybeInputsOwned{u.proposalBase}
}

// IsOwned reports whether lockingScript belongs to the receiver's own wallet.
type IsOwned func(lockingScript []byte) (bool, *ImplementationError)

// CheckInputsNotOwned refuses the proposal if any Original PSBT input belongs to the receiver —
// otherwise a malicious sender could have the receiver unknowingly sign away its own coin.
func (m MaybeInputsOwned) CheckInputsNotOwned(isOwned IsOwned) (*MaybeInputsSeen, *ReplyableError) {
	if err := m.Ctx.CheckExpiry(timeNow()); err != nil {
		return nil, errUnavailable(err)
	}

	for _, in := range m.Proposal.Inputs {
		owned, implErr := isOwned(in.LockingScript)
		if implErr != nil {
			return nil, implErr.AsReplyable()
		}
		if owned {
			return nil, errOriginalPSBTRejected(errors.New("original transaction includes an input belonging to the receiver"))
		}
	}

	return &MaybeInputsSeen{m.proposalBase}, nil
}

// IsKnown atomically tests whether outpoint has been accepted by any prior session, and records
// it if not, in one step. Implementations MUST serialize this check-and-record across sessions
// (spec.md design note "replay-safe is_known"); a plain read-then-write races two concurrent
// sessions spending the same input.
type IsKnown func(outpoint wire.OutPoint) (bool, *ImplementationError)

// CheckNoInputsSeenBefore refuses the proposal if any input has already been accepted by a prior
// session — the defense against replay/reentrant Payjoin, where a sender feeds a Payjoin
// Proposal PSBT back in as a new Original PSBT.
func (m MaybeInputsSeen) CheckNoInputsSeenBefore(isKnown IsKnown) (*OutputsUnknown, *ReplyableError) {
	if err := m.Ctx.CheckExpiry(timeNow()); err != nil {
		return nil, errUnavailable(err)
	}

	for _, in := range m.Proposal.MsgTx.TxIn {
		known, implErr := isKnown(in.PreviousOutPoint)
		if implErr != nil {
			return nil, implErr.AsReplyable()
		}
		if known {
			return nil, errOriginalPSBTRejected(errors.New("original transaction includes an input already seen in a prior session"))
		}
	}

	return &OutputsUnknown{m.proposalBase}, nil
}

// IsReceiverOutput reports whether lockingScript pays the receiver's own wallet.
type IsReceiverOutput func(lockingScript []byte) (bool, *ImplementationError)

// IdentifyReceiverOutputs locates the Original PSBT outputs that pay the receiver, refusing the
// proposal outright if none do — a Payjoin that doesn't actually pay the receiver isn't one.
func (o OutputsUnknown) IdentifyReceiverOutputs(isReceiverOutput IsReceiverOutput) (*WantsOutputs, *ReplyableError) {
	if err := o.Ctx.CheckExpiry(timeNow()); err != nil {
		return nil, errUnavailable(err)
	}

	var indexes []int
	for i, out := range o.Proposal.MsgTx.TxOut {
		isReceiver, implErr := isReceiverOutput(out.LockingScript)
		if implErr != nil {
			return nil, implErr.AsReplyable()
		}
		if isReceiver {
			o.Proposal.Outputs[i].IsReceiverOutput = true
			indexes = append(indexes, i)
		}
	}

	if len(indexes) == 0 {
		return nil, errOriginalPSBTRejected(errors.New("original transaction has no output paying the receiver"))
	}

	// A single receiver output is, absent an explicit replace_receiver_outputs call, the one
	// that absorbs contributed-input value and fee adjustments (BIP-78's default drain). With
	// more than one receiver output there is no unambiguous default, so ReplaceReceiverOutputs
	// must designate the drain explicitly.
	if len(indexes) == 1 {
		if err := o.Proposal.MarkDrain(indexes[0]); err != nil {
			return nil, errUnavailable(errors.Wrap(err, "mark default drain output"))
		}
	}

	return &WantsOutputs{proposalBase: o.proposalBase, receiverOutputIndexes: indexes}, nil
}
