package payjoin

import (
	"github.com/pkg/errors"
)

// InputContributionError is returned by ContributeInputs when an input cannot be added to the
// proposal (most commonly, a candidate outpoint already present in the transaction).
type InputContributionError struct {
	cause error
}

func (e *InputContributionError) Error() string { return e.cause.Error() }
func (e *InputContributionError) Unwrap() error { return e.cause }

// ContributeInputs adds inputs (typically a single input chosen by TryPreservingPrivacy) to the
// proposal. Any value the sender wasn't already paying for is credited to the previously
// designated drain output, per spec.md's "excess goes to the previously designated change
// output" rule; finalize_proposal later removes the receiver's share of the added network fee
// from that same output.
func (w *WantsInputs) ContributeInputs(inputs []InputCandidate) *InputContributionError {
	drainIndex := w.Proposal.DrainOutputIndex()

	var total uint64
	for _, in := range inputs {
		if err := w.Proposal.AddInput(in.Outpoint, in.LockingScript, in.Value); err != nil {
			return &InputContributionError{cause: errors.Wrap(err, "add input")}
		}
		total += in.Value
	}

	if total > 0 && drainIndex != -1 {
		if err := w.Proposal.AddValueToOutput(drainIndex, total); err != nil {
			return &InputContributionError{cause: errors.Wrap(err, "credit drain output")}
		}
	}

	return nil
}

// CommitInputs freezes the proposal's inputs, advancing to finalization. Inputs are no longer
// mutable past this call.
func (w WantsInputs) CommitInputs() *ProvisionalProposal {
	return &ProvisionalProposal{proposalBase: w.proposalBase, receiverOutputIndexes: w.receiverOutputIndexes}
}
