package psbt

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcjoin/receiver/bitcoin"
	"github.com/btcjoin/receiver/wire"

	"github.com/pkg/errors"
)

// SigHashType represents the hash type bits appended to a signature.
type SigHashType uint32

const (
	SigHashOld          SigHashType = 0x0
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80
	SigHashForkID       SigHashType = 0x40

	sigHashMask = 0x1f
)

// SigHashCache caches the three aggregated hashes shared across every SigHashAll input of a
// transaction, turning validation from O(N^2) into O(N) hashing work. Any edit to the
// transaction's inputs, sequences or outputs invalidates the corresponding cached hash; callers
// must Clear or ClearOutputs before resuming signing after such an edit.
type SigHashCache struct {
	hashPrevOuts []byte
	hashSequence []byte
	hashOutputs  []byte
}

// Clear resets every cached hash.
func (shc *SigHashCache) Clear() {
	shc.hashPrevOuts = nil
	shc.hashSequence = nil
	shc.hashOutputs = nil
}

// ClearOutputs resets only the outputs hash, for use after an output substitution that leaves
// inputs untouched.
func (shc *SigHashCache) ClearOutputs() {
	shc.hashOutputs = nil
}

func (shc *SigHashCache) HashPrevOuts(tx *wire.MsgTx) []byte {
	if shc.hashPrevOuts != nil {
		return shc.hashPrevOuts
	}

	var buf bytes.Buffer
	for _, in := range tx.TxIn {
		in.PreviousOutPoint.Serialize(&buf)
	}

	shc.hashPrevOuts = bitcoin.DoubleSha256(buf.Bytes())
	return shc.hashPrevOuts
}

func (shc *SigHashCache) HashSequence(tx *wire.MsgTx) []byte {
	if shc.hashSequence != nil {
		return shc.hashSequence
	}

	var buf bytes.Buffer
	for _, in := range tx.TxIn {
		binary.Write(&buf, binary.LittleEndian, in.Sequence)
	}

	shc.hashSequence = bitcoin.DoubleSha256(buf.Bytes())
	return shc.hashSequence
}

func (shc *SigHashCache) HashOutputs(tx *wire.MsgTx) []byte {
	if shc.hashOutputs != nil {
		return shc.hashOutputs
	}

	var buf bytes.Buffer
	for _, out := range tx.TxOut {
		out.Serialize(&buf, 0, 0)
	}

	shc.hashOutputs = bitcoin.DoubleSha256(buf.Bytes())
	return shc.hashOutputs
}

// SignatureHash computes the BIP-143 signature hash for the input at index, given the locking
// script and value of the output it spends. Output substitution invalidates every signature
// computed against the pre-substitution outputs hash.
func SignatureHash(tx *wire.MsgTx, index int, lockScript []byte, value uint64,
	hashType SigHashType, hashCache *SigHashCache) (*bitcoin.Hash32, error) {

	s := sha256.New()

	if err := writeSignatureHashPreimageBytes(s, tx, index, lockScript, value, hashType,
		hashCache); err != nil {
		return nil, errors.Wrap(err, "write sig hash bytes")
	}

	hash := bitcoin.Hash32(sha256.Sum256(s.Sum(nil)))
	return &hash, nil
}

func writeSignatureHashPreimageBytes(w io.Writer, tx *wire.MsgTx, index int, lockScript []byte,
	value uint64, hashType SigHashType, hashCache *SigHashCache) error {

	if index > len(tx.TxIn)-1 {
		return fmt.Errorf("signature hash: index %d but %d txins", index, len(tx.TxIn))
	}

	binary.Write(w, binary.LittleEndian, tx.Version)

	var zeroHash [32]byte

	if hashType&SigHashAnyOneCanPay == 0 {
		w.Write(hashCache.HashPrevOuts(tx))
	} else {
		w.Write(zeroHash[:])
	}

	if hashType&SigHashAnyOneCanPay == 0 &&
		hashType&sigHashMask != SigHashSingle &&
		hashType&sigHashMask != SigHashNone {
		w.Write(hashCache.HashSequence(tx))
	} else {
		w.Write(zeroHash[:])
	}

	tx.TxIn[index].PreviousOutPoint.Serialize(w)

	wire.WriteVarBytes(w, 0, lockScript)

	binary.Write(w, binary.LittleEndian, value)
	binary.Write(w, binary.LittleEndian, tx.TxIn[index].Sequence)

	if hashType&SigHashSingle != SigHashSingle && hashType&SigHashNone != SigHashNone {
		w.Write(hashCache.HashOutputs(tx))
	} else if hashType&sigHashMask == SigHashSingle && index < len(tx.TxOut) {
		var b bytes.Buffer
		tx.TxOut[index].Serialize(&b, 0, 0)
		w.Write(bitcoin.DoubleSha256(b.Bytes()))
	} else {
		w.Write(zeroHash[:])
	}

	binary.Write(w, binary.LittleEndian, tx.LockTime)
	binary.Write(w, binary.LittleEndian, uint32(hashType|SigHashForkID))

	return nil
}
