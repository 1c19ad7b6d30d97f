package types

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
)

// GenesisValidator is one entry of the permissioned validator list; list
// order defines the validator indexes used on the wire.
type GenesisValidator struct {
	Address Address       `json:"address"`
	PubKey  crypto.PubKey `json:"pub_key"`
	Name    string        `json:"name,omitempty"`
}

// GenesisDoc defines the initial conditions of the chain.
type GenesisDoc struct {
	ChainID     string             `json:"chain_id"`
	GenesisTime time.Time          `json:"genesis_time"`
	Validators  []GenesisValidator `json:"validators"`
}

func (genDoc *GenesisDoc) ValidateAndComplete() error {
	if genDoc.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}
	if len(genDoc.Validators) == 0 {
		return errors.New("genesis doc must include at least one validator")
	}
	for i, v := range genDoc.Validators {
		if v.PubKey == nil {
			return fmt.Errorf("genesis validator #%d has no public key", i)
		}
		if len(v.Address) == 0 {
			genDoc.Validators[i].Address = v.PubKey.Address()
		}
	}
	if genDoc.GenesisTime.IsZero() {
		genDoc.GenesisTime = time.Now()
	}
	return nil
}

// ValidatorSet builds the ordered validator set from the genesis list.
func (genDoc *GenesisDoc) ValidatorSet() *ValidatorSet {
	vals := make([]*Validator, len(genDoc.Validators))
	for i, v := range genDoc.Validators {
		vals[i] = NewValidator(v.PubKey)
	}
	return NewValidatorSet(vals)
}

// SaveAs is a utility method for saving GenesisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := tmjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return tmos.WriteFile(file, genDocBytes, 0644)
}

//------------------------------------------------------------
// Make genesis state from file

// GenesisDocFromJSON unmarshals JSON data into a GenesisDoc.
func GenesisDocFromJSON(jsonBlob []byte) (*GenesisDoc, error) {
	genDoc := GenesisDoc{}
	err := tmjson.Unmarshal(jsonBlob, &genDoc)
	if err != nil {
		return nil, err
	}
	if err := genDoc.ValidateAndComplete(); err != nil {
		return nil, err
	}
	return &genDoc, err
}

// GenesisDocFromFile reads JSON data from a file and unmarshals it into a
// GenesisDoc.
func GenesisDocFromFile(genDocFile string) (*GenesisDoc, error) {
	jsonBlob, err := ioutil.ReadFile(genDocFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't read GenesisDoc file: %w", err)
	}
	genDoc, err := GenesisDocFromJSON(jsonBlob)
	if err != nil {
		return nil, fmt.Errorf("error reading GenesisDoc at %v: %w", genDocFile, err)
	}
	return genDoc, nil
}
