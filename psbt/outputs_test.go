package psbt

import (
	"testing"

	"github.com/btcjoin/receiver/bitcoin"
)

func TestProposal_AddPaymentOutput_RejectsDust(t *testing.T) {
	key, err := bitcoin.GenerateKey(bitcoin.MainNet)
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}
	address, err := key.PublicKey().RawAddress()
	if err != nil {
		t.Fatalf("raw address: %s", err)
	}

	p := NewProposal()

	err = p.AddPaymentOutput(address, 100, false, false)
	if err == nil {
		t.Fatal("expected below dust error")
	}
	if !IsErrorCode(err, ErrorCodeBelowDustValue) {
		t.Errorf("got %s, want below dust error", err)
	}
}

func TestProposal_ReplaceOutputScript(t *testing.T) {
	p := NewProposal()

	if err := p.AddOutput([]byte{0x6a}, 50000, true, false); err != nil {
		t.Fatalf("add output: %s", err)
	}

	newScript := []byte{0x51}
	if err := p.ReplaceOutputScript(0, newScript); err != nil {
		t.Fatalf("replace: %s", err)
	}

	if string(p.MsgTx.TxOut[0].LockingScript) != string(newScript) {
		t.Error("locking script not replaced")
	}
	if p.MsgTx.TxOut[0].Value != 50000 {
		t.Error("value changed by script replacement")
	}
}

func TestProposal_MarkDrain_OnlyOneAtATime(t *testing.T) {
	p := NewProposal()

	if err := p.AddOutput([]byte{0x6a}, 1000, false, true); err != nil {
		t.Fatalf("add output: %s", err)
	}
	if err := p.AddOutput([]byte{0x6b}, 2000, false, false); err != nil {
		t.Fatalf("add output: %s", err)
	}

	if err := p.MarkDrain(1); err != nil {
		t.Fatalf("mark drain: %s", err)
	}

	if p.Outputs[0].IsDrain {
		t.Error("previous drain flag not cleared")
	}
	if !p.Outputs[1].IsDrain {
		t.Error("new drain flag not set")
	}
}

func TestProposal_FindOutputByScript(t *testing.T) {
	p := NewProposal()

	if err := p.AddOutput([]byte{0x6a}, 1000, false, false); err != nil {
		t.Fatalf("add output: %s", err)
	}
	if err := p.AddOutput([]byte{0x6b}, 2000, false, false); err != nil {
		t.Fatalf("add output: %s", err)
	}

	if got := p.FindOutputByScript([]byte{0x6b}); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := p.FindOutputByScript([]byte{0x99}); got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}
