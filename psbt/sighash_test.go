package psbt

import (
	"testing"

	"github.com/btcjoin/receiver/wire"
)

func TestSignatureHash_ChangesWithOutputs(t *testing.T) {
	tx := &wire.MsgTx{Version: 2}
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil))
	tx.AddTxOut(&wire.TxOut{Value: 1000, LockingScript: []byte{0x6a}})

	cache := &SigHashCache{}
	lockScript := []byte{0x76, 0xa9}

	before, err := SignatureHash(tx, 0, lockScript, 5000, SigHashAll|SigHashForkID, cache)
	if err != nil {
		t.Fatalf("sig hash: %s", err)
	}

	tx.TxOut[0].Value = 2000
	cache.ClearOutputs()

	after, err := SignatureHash(tx, 0, lockScript, 5000, SigHashAll|SigHashForkID, cache)
	if err != nil {
		t.Fatalf("sig hash: %s", err)
	}

	if before.Equal(after) {
		t.Error("signature hash did not change after output value changed and cache was cleared")
	}
}

func TestSignatureHash_StableWithoutChange(t *testing.T) {
	tx := &wire.MsgTx{Version: 2}
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil))
	tx.AddTxOut(&wire.TxOut{Value: 1000, LockingScript: []byte{0x6a}})

	cache := &SigHashCache{}
	lockScript := []byte{0x76, 0xa9}

	first, err := SignatureHash(tx, 0, lockScript, 5000, SigHashAll|SigHashForkID, cache)
	if err != nil {
		t.Fatalf("sig hash: %s", err)
	}

	second, err := SignatureHash(tx, 0, lockScript, 5000, SigHashAll|SigHashForkID, cache)
	if err != nil {
		t.Fatalf("sig hash: %s", err)
	}

	if !first.Equal(second) {
		t.Error("signature hash changed without any transaction edit")
	}
}
