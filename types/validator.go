// fork from github.com/tendermint/tendermint/types/validator.go
package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto"
)

// Validator is one member of the fixed, permissioned validator list.
// Identity is a public key; the wire messages reference validators by
// their index into the ordered ValidatorSet.
type Validator struct {
	Address Address       `json:"address"`
	PubKey  crypto.PubKey `json:"pub_key"`
}

// NewValidator returns a new validator with the given pubkey.
func NewValidator(pubKey crypto.PubKey) *Validator {
	return &Validator{
		Address: pubKey.Address(),
		PubKey:  pubKey,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if v.PubKey == nil {
		return errors.New("validator does not have a public key")
	}
	if len(v.Address) != crypto.AddressSize {
		return fmt.Errorf("validator address is the wrong size: %v", v.Address)
	}
	return nil
}

// Copy creates a new copy of the validator.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	return &vCopy
}

func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v %v}", v.Address, v.PubKey)
}

// Bytes computes the unique encoding of a validator, used as a merkle leaf
// when hashing the validator set.
func (v *Validator) Bytes() []byte {
	pk, err := tmjsonMarshal(v.PubKey)
	if err != nil {
		panic(err)
	}
	return pk
}

//----------------------------------------
// RandValidator

// RandValidator returns a randomized validator, useful for testing.
// UNSTABLE
func RandValidator() (*Validator, PrivValidator) {
	privVal := NewMockPV()

	pubKey, err := privVal.GetPubKey()
	if err != nil {
		panic(fmt.Errorf("could not retrieve pubkey %w", err))
	}
	val := NewValidator(pubKey)
	return val, privVal
}
