package psbt

import (
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"
)

func TestProposal_Fee(t *testing.T) {
	p := NewProposal()

	if err := p.AddInput(wire.OutPoint{Index: 0}, nil, 100000); err != nil {
		t.Fatalf("add input: %s", err)
	}
	if err := p.AddOutput(bitcoin.Script{0x6a}, 95000, true, true); err != nil {
		t.Fatalf("add output: %s", err)
	}

	if got := p.Fee(); got != 5000 {
		t.Errorf("got fee %d, want 5000", got)
	}
}

func TestProposal_AdjustDrainForFee(t *testing.T) {
	p := NewProposal()

	if err := p.AddInput(wire.OutPoint{Index: 0}, nil, 100000); err != nil {
		t.Fatalf("add input: %s", err)
	}
	if err := p.AddOutput(bitcoin.Script{0x6a}, 99000, true, true); err != nil {
		t.Fatalf("add output: %s", err)
	}

	if err := p.AdjustDrainForFee(2000); err != nil {
		t.Fatalf("adjust: %s", err)
	}

	if got := p.MsgTx.TxOut[0].Value; got != 97000 {
		t.Errorf("got drain value %d, want 97000", got)
	}
}

func TestProposal_AdjustDrainForFee_BelowDust(t *testing.T) {
	p := NewProposal()

	if err := p.AddInput(wire.OutPoint{Index: 0}, nil, 100000); err != nil {
		t.Fatalf("add input: %s", err)
	}
	if err := p.AddOutput(bitcoin.Script{0x6a}, 1000, true, true); err != nil {
		t.Fatalf("add output: %s", err)
	}

	err := p.AdjustDrainForFee(900)
	if err == nil {
		t.Fatal("expected below dust error")
	}
	if !IsErrorCode(err, ErrorCodeBelowDustValue) {
		t.Errorf("got %s, want below dust error", err)
	}
}

func TestProposal_AdjustDrainForFee_NoDrain(t *testing.T) {
	p := NewProposal()

	if err := p.AddOutput(bitcoin.Script{0x6a}, 1000, true, false); err != nil {
		t.Fatalf("add output: %s", err)
	}

	err := p.AdjustDrainForFee(100)
	if err == nil {
		t.Fatal("expected insufficient value error")
	}
	if !IsErrorCode(err, ErrorCodeInsufficientValue) {
		t.Errorf("got %s, want insufficient value error", err)
	}
}

func TestProposal_EffectiveFeeRate(t *testing.T) {
	p := NewProposal()

	if err := p.AddInput(wire.OutPoint{Index: 0}, nil, 100000); err != nil {
		t.Fatalf("add input: %s", err)
	}
	if err := p.AddOutput(bitcoin.Script{0x6a}, 95000, true, true); err != nil {
		t.Fatalf("add output: %s", err)
	}

	rate := p.EffectiveFeeRate()
	if rate <= 0 {
		t.Errorf("got effective fee rate %f, want positive", rate)
	}
}
