package psbt

import (
	"bytes"
	"fmt"

	"github.com/btcjoin/receiver/bitcoin"

	"github.com/pkg/errors"
)

// InputSignature computes the BIP-143 signature for the input at index spending a locking
// script of value, under key.
func InputSignature(key bitcoin.Key, p *Proposal, index int, lockScript []byte, value uint64,
	hashType SigHashType, hashCache *SigHashCache) ([]byte, error) {

	hash, err := SignatureHash(p.MsgTx, index, lockScript, value, hashType, hashCache)
	if err != nil {
		return nil, errors.Wrap(err, "sig hash")
	}

	sig, err := key.Sign(*hash)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}

	return append(sig.Bytes(), byte(hashType)), nil
}

// P2PKHUnlockingScript builds a <Signature> <PublicKey> unlocking script for a P2PKH input.
func P2PKHUnlockingScript(key bitcoin.Key, p *Proposal, index int, lockScript []byte,
	value uint64, hashType SigHashType, hashCache *SigHashCache) ([]byte, error) {

	sig, err := InputSignature(key, p, index, lockScript, value, hashType, hashCache)
	if err != nil {
		return nil, err
	}

	pubkey := key.PublicKey().Bytes()

	buf := bytes.NewBuffer(make([]byte, 0, len(sig)+len(pubkey)+2))
	if err := bitcoin.WritePushDataScript(buf, sig); err != nil {
		return nil, errors.Wrap(err, "push signature")
	}
	if err := bitcoin.WritePushDataScript(buf, pubkey); err != nil {
		return nil, errors.Wrap(err, "push public key")
	}

	return buf.Bytes(), nil
}

// SignP2PKHInput finalizes the unlocking script for a single P2PKH input. Use this when signing
// one input at a time rather than the whole transaction at once, e.g. when the receiver signs
// only its contributed inputs and relies on the sender to have already signed its own.
func (p *Proposal) SignP2PKHInput(index int, key bitcoin.Key, hashCache *SigHashCache) error {
	if index < 0 || index >= len(p.Inputs) {
		return newError(ErrorCodeMissingInputData, "input index out of range")
	}

	info := p.Inputs[index]

	address, err := bitcoin.RawAddressFromLockingScript(info.LockingScript)
	if err != nil {
		return errors.Wrap(err, "parse locking script")
	}

	if address.Type() != bitcoin.ScriptTypePKH {
		return newError(ErrorCodeWrongScriptTemplate, "not a P2PKH locking script")
	}

	hash, err := address.Hash()
	if err != nil {
		return errors.Wrap(err, "address hash")
	}

	if !bytes.Equal(hash.Bytes(), bitcoin.Hash160(key.PublicKey().Bytes())) {
		return newError(ErrorCodeWrongPrivateKey, fmt.Sprintf("required : %x", hash.Bytes()))
	}

	unlockingScript, err := P2PKHUnlockingScript(key, p, index, info.LockingScript, info.Value,
		SigHashAll|SigHashForkID, hashCache)
	if err != nil {
		return err
	}

	p.MsgTx.TxIn[index].UnlockingScript = unlockingScript
	info.Signed = true
	return nil
}

// SignReceiverInputs signs every input the receiver contributed, using key for each one. It
// leaves sender-signed inputs untouched, matching the BIP-78 rule that a receiver never alters
// or re-signs the sender's own inputs.
func (p *Proposal) SignReceiverInputs(key bitcoin.Key, hashCache *SigHashCache) error {
	for index, info := range p.Inputs {
		if !info.ContributedByReceiver || info.Signed {
			continue
		}

		if err := p.SignP2PKHInput(index, key, hashCache); err != nil {
			return errors.Wrapf(err, "sign input %d", index)
		}
	}

	return nil
}

// AllInputsAreSigned reports whether every input carries a finalized unlocking script.
func (p *Proposal) AllInputsAreSigned() bool {
	for _, in := range p.MsgTx.TxIn {
		if len(in.UnlockingScript) == 0 {
			return false
		}
	}
	return true
}
