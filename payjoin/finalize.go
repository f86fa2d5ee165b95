package payjoin

import (
	"github.com/btcjoin/receiver/psbt"

	"github.com/pkg/errors"
)

// WalletProcessPSBT signs every input the receiver contributed (sender-signed inputs MUST come
// back untouched) and returns the resulting proposal.
type WalletProcessPSBT func(p *psbt.Proposal) (*psbt.Proposal, *ImplementationError)

// FinalizeProposal signs the receiver's contributed inputs via walletProcessPSBT, recomputes the
// network fee the receiver's own contribution owes and subtracts it from the drain output,
// then enforces the effective fee rate stays within [minFeeRate, maxEffectiveFeeRate].
func (p ProvisionalProposal) FinalizeProposal(walletProcessPSBT WalletProcessPSBT,
	minFeeRate, maxEffectiveFeeRate *float64) (*PayjoinProposal, *ReplyableError) {

	if err := p.Ctx.CheckExpiry(timeNow()); err != nil {
		return nil, errUnavailable(err)
	}

	signed, implErr := walletProcessPSBT(p.Proposal)
	if implErr != nil {
		return nil, implErr.AsReplyable()
	}
	p.Proposal = signed

	if minFeeRate != nil {
		required := p.Proposal.EstimatedFee(*minFeeRate)
		current := p.Proposal.Fee()
		if required > current {
			if err := p.Proposal.AdjustDrainForFee(int64(required - current)); err != nil {
				return nil, errNotEnoughMoney(errors.Wrap(err, "cover minimum fee rate"))
			}
		}
	}

	effectiveRate := p.Proposal.EffectiveFeeRate()
	if minFeeRate != nil && effectiveRate < *minFeeRate {
		return nil, errOriginalPSBTRejected(errors.Errorf(
			"effective fee rate %.8f sat/vB is below the minimum %.8f", effectiveRate, *minFeeRate))
	}
	if maxEffectiveFeeRate != nil && effectiveRate > *maxEffectiveFeeRate {
		return nil, errOriginalPSBTRejected(errors.Errorf(
			"effective fee rate %.8f sat/vB exceeds the maximum %.8f", effectiveRate, *maxEffectiveFeeRate))
	}

	if !p.Proposal.AllInputsAreSigned() {
		return nil, errOriginalPSBTRejected(errors.New("not every input is signed after finalization"))
	}

	return &PayjoinProposal{p.proposalBase}, nil
}
