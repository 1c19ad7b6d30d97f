package types

import (
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
)

// PrivValidator signs consensus messages on behalf of this node's validator
// identity. The file-backed implementation lives in the privval package.
type PrivValidator interface {
	GetPubKey() (crypto.PubKey, error)

	SignPropose(chainID string, propose *Propose) error
	SignPrevote(chainID string, prevote *Prevote) error
	SignPrecommit(chainID string, precommit *Precommit) error
	SignStatus(chainID string, status *Status) error
}

//----------------------------------------
// MockPV

// MockPV implements PrivValidator with an in-memory ed25519 key.
// EXPOSED FOR TESTING.
type MockPV struct {
	PrivKey crypto.PrivKey
}

func NewMockPV() MockPV {
	return MockPV{ed25519.GenPrivKey()}
}

func (pv MockPV) GetPubKey() (crypto.PubKey, error) {
	return pv.PrivKey.PubKey(), nil
}

func (pv MockPV) SignPropose(chainID string, propose *Propose) error {
	sig, err := pv.PrivKey.Sign(propose.SignBytes(chainID))
	if err != nil {
		return err
	}
	propose.Signature = sig
	return nil
}

func (pv MockPV) SignPrevote(chainID string, prevote *Prevote) error {
	sig, err := pv.PrivKey.Sign(prevote.SignBytes(chainID))
	if err != nil {
		return err
	}
	prevote.Signature = sig
	return nil
}

func (pv MockPV) SignPrecommit(chainID string, precommit *Precommit) error {
	sig, err := pv.PrivKey.Sign(precommit.SignBytes(chainID))
	if err != nil {
		return err
	}
	precommit.Signature = sig
	return nil
}

func (pv MockPV) SignStatus(chainID string, status *Status) error {
	sig, err := pv.PrivKey.Sign(status.SignBytes(chainID))
	if err != nil {
		return err
	}
	status.Signature = sig
	return nil
}
