package payjoin

import (
	"github.com/btcjoin/receiver/psbt"
)

// proposalBase is the data every pipeline stage carries: the session it belongs to, the
// transaction under construction, and the parameters the sender's payload declared. Each state
// type embeds it rather than repeating the three fields, matching the "tagged variant" shape
// spec.md's typestate design note calls for — distinct types, not one struct with a phase flag.
type proposalBase struct {
	Ctx      *SessionContext
	Proposal *psbt.Proposal
	Params   Params
}

// UncheckedProposal is the raw sender payload, parsed but not yet validated against any
// anti-abuse guard.
type UncheckedProposal struct {
	proposalBase
}

// MaybeInputsOwned has passed (or explicitly skipped) the broadcast-suitability guard.
type MaybeInputsOwned struct {
	proposalBase
}

// MaybeInputsSeen has confirmed none of the Original PSBT's inputs belong to the receiver.
type MaybeInputsSeen struct {
	proposalBase
}

// OutputsUnknown has confirmed none of the Original PSBT's inputs have been seen in any prior
// session.
type OutputsUnknown struct {
	proposalBase
}

// WantsOutputs has identified which outputs pay the receiver and may substitute or replace them
// before they are frozen.
type WantsOutputs struct {
	proposalBase
	receiverOutputIndexes []int
}

// WantsInputs has frozen its outputs and may contribute receiver inputs before they are frozen.
type WantsInputs struct {
	proposalBase
	receiverOutputIndexes []int
}

// ProvisionalProposal has frozen both outputs and inputs and is ready for fee finalization and
// signing.
type ProvisionalProposal struct {
	proposalBase
	receiverOutputIndexes []int
}

// PayjoinProposal is signed, fee-finalized, and ready to publish to the sender.
type PayjoinProposal struct {
	proposalBase
}

// UnderlyingProposal exposes the underlying PSBT under construction, valid at every stage.
func (b proposalBase) UnderlyingProposal() *psbt.Proposal { return b.Proposal }

// Context exposes the session this proposal belongs to, valid at every stage.
func (b proposalBase) Context() *SessionContext { return b.Ctx }
