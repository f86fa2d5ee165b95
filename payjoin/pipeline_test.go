package payjoin

import (
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/psbt"
	"github.com/btcjoin/receiver/wire"
)

func testUnchecked(t *testing.T, proposal *psbt.Proposal, params Params) *UncheckedProposal {
	t.Helper()
	return &UncheckedProposal{proposalBase{Ctx: testSession(t), Proposal: proposal, Params: params}}
}

func buildSenderProposal(t *testing.T, senderInput uint64, senderOutput, receiverOutput uint64) *psbt.Proposal {
	t.Helper()

	p := psbt.NewProposal()
	if err := p.AddInput(wire.OutPoint{Index: 0}, bitcoin.Script{0x51}, senderInput); err != nil {
		t.Fatalf("add input: %s", err)
	}
	p.MsgTx.TxIn[0].UnlockingScript = bitcoin.Script{0x01} // Original PSBT inputs arrive pre-signed.

	if err := p.AddOutput(bitcoin.Script{0x52}, senderOutput, false, false); err != nil {
		t.Fatalf("add sender output: %s", err)
	}
	if err := p.AddOutput(bitcoin.Script{0x53}, receiverOutput, false, true); err != nil {
		t.Fatalf("add receiver output: %s", err)
	}
	return p
}

// runToWantsInputs drives a fresh proposal through the first four guards with permissive
// oracles, matching the happy path every test below needs before it can exercise a later stage.
func runToWantsInputs(t *testing.T, u *UncheckedProposal) *WantsInputs {
	t.Helper()

	maybeOwned := u.AssumeInteractiveReceiver()

	maybeSeen, replyErr := maybeOwned.CheckInputsNotOwned(func([]byte) (bool, *ImplementationError) {
		return false, nil
	})
	if replyErr != nil {
		t.Fatalf("check inputs not owned: %s", replyErr)
	}

	outputsUnknown, replyErr := maybeSeen.CheckNoInputsSeenBefore(func(wire.OutPoint) (bool, *ImplementationError) {
		return false, nil
	})
	if replyErr != nil {
		t.Fatalf("check no inputs seen before: %s", replyErr)
	}

	wantsOutputs, replyErr := outputsUnknown.IdentifyReceiverOutputs(func(script []byte) (bool, *ImplementationError) {
		return bitcoin.Script(script).Equal(bitcoin.Script{0x53}), nil
	})
	if replyErr != nil {
		t.Fatalf("identify receiver outputs: %s", replyErr)
	}

	return wantsOutputs.CommitOutputs()
}

func TestPipeline_HappyPathReachesWantsInputs(t *testing.T) {
	proposal := buildSenderProposal(t, 100000, 40000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo, OutputSubstitution: OutputSubstitutionEnabled})

	wantsInputs := runToWantsInputs(t, u)
	if wantsInputs == nil {
		t.Fatal("expected a WantsInputs state")
	}
}

// TestGuard_CheckInputsNotOwned_RejectsOwnedInput covers spec.md invariant 4.
func TestGuard_CheckInputsNotOwned_RejectsOwnedInput(t *testing.T) {
	proposal := buildSenderProposal(t, 100000, 40000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo})

	maybeOwned := u.AssumeInteractiveReceiver()
	_, replyErr := maybeOwned.CheckInputsNotOwned(func([]byte) (bool, *ImplementationError) {
		return true, nil
	})
	if replyErr == nil {
		t.Fatal("expected rejection for a receiver-owned input")
	}
	if replyErr.Code != ErrorCodeOriginalPSBTRejected {
		t.Errorf("got code %q, want %q", replyErr.Code, ErrorCodeOriginalPSBTRejected)
	}
}

// TestGuard_CheckNoInputsSeenBefore_RejectsReplay covers spec.md invariant 5.
func TestGuard_CheckNoInputsSeenBefore_RejectsReplay(t *testing.T) {
	proposal := buildSenderProposal(t, 100000, 40000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo})

	maybeOwned := u.AssumeInteractiveReceiver()
	maybeSeen, replyErr := maybeOwned.CheckInputsNotOwned(func([]byte) (bool, *ImplementationError) { return false, nil })
	if replyErr != nil {
		t.Fatalf("check inputs not owned: %s", replyErr)
	}

	_, replyErr = maybeSeen.CheckNoInputsSeenBefore(func(wire.OutPoint) (bool, *ImplementationError) {
		return true, nil // already claimed by a prior session
	})
	if replyErr == nil {
		t.Fatal("expected rejection for a previously-seen input")
	}
}

func TestGuard_IdentifyReceiverOutputs_RejectsWhenNoneMatch(t *testing.T) {
	proposal := buildSenderProposal(t, 100000, 40000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo})

	maybeOwned := u.AssumeInteractiveReceiver()
	maybeSeen, replyErr := maybeOwned.CheckInputsNotOwned(func([]byte) (bool, *ImplementationError) { return false, nil })
	if replyErr != nil {
		t.Fatalf("check inputs not owned: %s", replyErr)
	}
	outputsUnknown, replyErr := maybeSeen.CheckNoInputsSeenBefore(func(wire.OutPoint) (bool, *ImplementationError) { return false, nil })
	if replyErr != nil {
		t.Fatalf("check no inputs seen before: %s", replyErr)
	}

	_, replyErr = outputsUnknown.IdentifyReceiverOutputs(func([]byte) (bool, *ImplementationError) {
		return false, nil
	})
	if replyErr == nil {
		t.Fatal("expected rejection when no output pays the receiver")
	}
}

// TestGuard_CheckBroadcastSuitability_ImplementationErrorMapsToUnavailable covers spec.md
// scenario S3.
func TestGuard_CheckBroadcastSuitability_ImplementationErrorMapsToUnavailable(t *testing.T) {
	proposal := buildSenderProposal(t, 100000, 40000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo})

	_, replyErr := u.CheckBroadcastSuitability(nil, func(*wire.MsgTx) (bool, *ImplementationError) {
		return false, newImplementationError(errTestOracle)
	})
	if replyErr == nil {
		t.Fatal("expected a replyable error")
	}
	if replyErr.Code != ErrorCodeUnavailable {
		t.Errorf("got code %q, want %q", replyErr.Code, ErrorCodeUnavailable)
	}

	reply := NewJSONReply(replyErr)
	if reply.ErrorCode != "unavailable" || reply.Message != "Receiver error" {
		t.Errorf("got %+v, want {unavailable, Receiver error}", reply)
	}
}

// TestUIH_TryPreservingPrivacy_SelectsSmallestQualifyingCandidate covers spec.md scenario S7.
func TestUIH_TryPreservingPrivacy_SelectsSmallestQualifyingCandidate(t *testing.T) {
	proposal := buildSenderProposal(t, 150000, 100000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo, OutputSubstitution: OutputSubstitutionEnabled})
	wantsInputs := runToWantsInputs(t, u)

	candidates := []InputCandidate{
		{Outpoint: wire.OutPoint{Index: 1}, LockingScript: bitcoin.Script{0x54}, Value: 20000},
		{Outpoint: wire.OutPoint{Index: 2}, LockingScript: bitcoin.Script{0x55}, Value: 40000},
		{Outpoint: wire.OutPoint{Index: 3}, LockingScript: bitcoin.Script{0x56}, Value: 60000},
	}

	chosen, err := wantsInputs.TryPreservingPrivacy(candidates)
	if err != nil {
		t.Fatalf("try preserving privacy: %s", err)
	}
	if chosen.Value != 20000 {
		t.Errorf("got chosen value %d, want 20000", chosen.Value)
	}
}

func TestUIH_TryPreservingPrivacy_FailsWhenNoCandidateQualifies(t *testing.T) {
	proposal := buildSenderProposal(t, 150000, 100000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo})
	wantsInputs := runToWantsInputs(t, u)

	candidates := []InputCandidate{
		{Outpoint: wire.OutPoint{Index: 1}, LockingScript: bitcoin.Script{0x54}, Value: 60000},
	}

	if _, err := wantsInputs.TryPreservingPrivacy(candidates); err == nil {
		t.Fatal("expected SelectionError when no candidate satisfies UIH2")
	}
}

func TestPipeline_FullFlowProducesSignedProposal(t *testing.T) {
	proposal := buildSenderProposal(t, 150000, 100000, 50000)
	u := testUnchecked(t, proposal, Params{Version: VersionTwo, OutputSubstitution: OutputSubstitutionEnabled})
	wantsInputs := runToWantsInputs(t, u)

	chosen, err := wantsInputs.TryPreservingPrivacy([]InputCandidate{
		{Outpoint: wire.OutPoint{Index: 1}, LockingScript: bitcoin.Script{0x54}, Value: 20000},
	})
	if err != nil {
		t.Fatalf("try preserving privacy: %s", err)
	}

	if contribErr := wantsInputs.ContributeInputs([]InputCandidate{chosen}); contribErr != nil {
		t.Fatalf("contribute inputs: %s", contribErr)
	}

	provisional := wantsInputs.CommitInputs()

	minFeeRate := 1.0
	maxFeeRate := 500.0
	finalProposal, replyErr := provisional.FinalizeProposal(func(p *psbt.Proposal) (*psbt.Proposal, *ImplementationError) {
		for _, in := range p.Inputs {
			if in.ContributedByReceiver {
				in.Signed = true
			}
		}
		for i, in := range p.MsgTx.TxIn {
			if p.Inputs[i].ContributedByReceiver {
				in.UnlockingScript = bitcoin.Script{0x01}
			}
		}
		return p, nil
	}, &minFeeRate, &maxFeeRate)
	if replyErr != nil {
		t.Fatalf("finalize proposal: %s", replyErr)
	}

	if !finalProposal.Proposal.AllInputsAreSigned() {
		t.Error("expected all inputs signed after finalization")
	}
	if len(finalProposal.Proposal.MsgTx.TxIn) != 2 {
		t.Errorf("got %d inputs, want 2", len(finalProposal.Proposal.MsgTx.TxIn))
	}
}

var errTestOracle = testOracleError("mock oracle failure")

type testOracleError string

func (e testOracleError) Error() string { return string(e) }
