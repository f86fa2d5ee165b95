package payjoin

import (
	"github.com/btcjoin/receiver/bitcoin"

	"github.com/pkg/errors"
)

// OutputSubstitutionError is raised by SubstituteReceiverScript / ReplaceReceiverOutputs when
// the sender disabled substitution, or when the replacement set violates a structural rule
// (missing drain script, wrong receiver-output count).
type OutputSubstitutionError struct {
	cause error
}

func (e *OutputSubstitutionError) Error() string { return e.cause.Error() }
func (e *OutputSubstitutionError) Unwrap() error { return e.cause }

func newOutputSubstitutionError(message string) *OutputSubstitutionError {
	return &OutputSubstitutionError{cause: errors.New(message)}
}

// OutputSubstitution echoes the sender's permission for this proposal to change its receiver
// output(s), possibly downgraded by the v1-in-v2 rule applied in ProcessDirectoryPayload.
func (w WantsOutputs) OutputSubstitution() OutputSubstitution {
	return w.Params.OutputSubstitution
}

// SubstituteReceiverScript replaces the single identified receiver output's locking script,
// leaving its value untouched. Valid only when exactly one output was identified as paying the
// receiver and the sender has not disabled substitution.
func (w *WantsOutputs) SubstituteReceiverScript(lockingScript bitcoin.Script) error {
	if w.Params.OutputSubstitution == OutputSubstitutionDisabled {
		return newOutputSubstitutionError("output substitution is disabled for this proposal")
	}
	if len(w.receiverOutputIndexes) != 1 {
		return newOutputSubstitutionError("substitute_receiver_script requires exactly one receiver output")
	}

	return w.Proposal.ReplaceOutputScript(w.receiverOutputIndexes[0], lockingScript)
}

// OutputReplacement is one output of a replace_receiver_outputs call.
type OutputReplacement struct {
	LockingScript bitcoin.Script
	Value         uint64
}

// ReplaceReceiverOutputs discards every identified receiver output and replaces them with
// replacements. drainScript MUST equal the locking script of exactly one replacement — that
// output absorbs whatever value surplus or fee deficit later stages introduce.
func (w *WantsOutputs) ReplaceReceiverOutputs(replacements []OutputReplacement, drainScript bitcoin.Script) error {
	if w.Params.OutputSubstitution == OutputSubstitutionDisabled {
		return newOutputSubstitutionError("output substitution is disabled for this proposal")
	}
	if len(replacements) == 0 {
		return newOutputSubstitutionError("replace_receiver_outputs requires at least one output")
	}

	drainIndex := -1
	for i, r := range replacements {
		if r.LockingScript.Equal(drainScript) {
			drainIndex = i
			break
		}
	}
	if drainIndex == -1 {
		return newOutputSubstitutionError("drain_script must appear among the replacement outputs")
	}

	// Remove the old receiver outputs highest-index-first so earlier indexes stay valid.
	for i := len(w.receiverOutputIndexes) - 1; i >= 0; i-- {
		if err := w.Proposal.RemoveOutput(w.receiverOutputIndexes[i]); err != nil {
			return errors.Wrap(err, "remove receiver output")
		}
	}

	newIndexes := make([]int, 0, len(replacements))
	for i, r := range replacements {
		if err := w.Proposal.AddOutput(r.LockingScript, r.Value, true, i == drainIndex); err != nil {
			return errors.Wrap(err, "add replacement output")
		}
		newIndexes = append(newIndexes, len(w.Proposal.MsgTx.TxOut)-1)
	}

	w.receiverOutputIndexes = newIndexes
	return nil
}

// CommitOutputs freezes the proposal's outputs, advancing to input contribution. Outputs are no
// longer mutable past this call.
func (w WantsOutputs) CommitOutputs() *WantsInputs {
	return &WantsInputs{proposalBase: w.proposalBase, receiverOutputIndexes: w.receiverOutputIndexes}
}
