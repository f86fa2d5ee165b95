package payjoin

import (
	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

// InputCandidate is one UTXO the receiver could contribute to the proposal.
type InputCandidate struct {
	Outpoint      wire.OutPoint
	LockingScript bitcoin.Script
	Value         uint64
}

// SelectionError is returned when no candidate in a try_preserving_privacy call would keep the
// proposal outside the "obvious payjoin" UIH1 regime.
type SelectionError struct {
	cause error
}

func (e *SelectionError) Error() string { return e.cause.Error() }
func (e *SelectionError) Unwrap() error { return e.cause }

// TryPreservingPrivacy selects, from candidates, the single input whose contribution keeps the
// transaction outside BlockSci's UIH1 class: an outside observer computing min(input) vs.
// min(output) over the finished transaction should not be able to single out the receiver's
// added input by elimination. Among qualifying candidates the smallest value wins, so the
// contributed input looks as unremarkable as possible; a set with no qualifying candidate at all
// fails with SelectionError rather than silently picking one that betrays the proposal.
func (w WantsInputs) TryPreservingPrivacy(candidates []InputCandidate) (InputCandidate, *SelectionError) {
	var (
		chosen InputCandidate
		found  bool
	)

	for _, candidate := range candidates {
		if !w.Proposal.SatisfiesUIH2(candidate.Value) {
			continue
		}
		if !found || candidate.Value < chosen.Value {
			chosen = candidate
			found = true
		}
	}

	if !found {
		return InputCandidate{}, &SelectionError{cause: errors.New("no candidate input avoids the unnecessary input heuristic")}
	}

	return chosen, nil
}
