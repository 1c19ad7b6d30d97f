package privval

import (
	"fmt"
	"io/ioutil"

	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"

	"permachain/types"
)

//-------------------------------------------------------------------------------

// FilePVKey stores the immutable part of PrivValidator.
type FilePVKey struct {
	Address types.Address  `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	PrivKey crypto.PrivKey `json:"priv_key"`

	filePath string
}

// Save persists the FilePVKey to its filePath.
func (pvKey FilePVKey) Save() {
	outFile := pvKey.filePath
	if outFile == "" {
		panic("cannot save PrivValidator key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := tempfile.WriteFileAtomic(outFile, jsonBytes, 0600); err != nil {
		panic(err)
	}
}

//-------------------------------------------------------------------------------

// FilePV implements PrivValidator with an ed25519 key persisted to disk.
// NOTE: the directory containing pv.Key.filePath must already exist.
type FilePV struct {
	Key FilePVKey
}

var _ types.PrivValidator = (*FilePV)(nil)

// NewFilePV generates a new validator from the given key and path.
func NewFilePV(privKey crypto.PrivKey, keyFilePath string) *FilePV {
	return &FilePV{
		Key: FilePVKey{
			Address:  privKey.PubKey().Address(),
			PubKey:   privKey.PubKey(),
			PrivKey:  privKey,
			filePath: keyFilePath,
		},
	}
}

// GenFilePV generates a new validator with a randomly generated private key
// and sets the filePath, but does not call Save().
func GenFilePV(keyFilePath string) *FilePV {
	return NewFilePV(ed25519.GenPrivKey(), keyFilePath)
}

// LoadFilePV loads a FilePV from the filePath. If the file path does not
// exist, the program exits.
func LoadFilePV(keyFilePath string) *FilePV {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		tmos.Exit(err.Error())
	}
	pvKey := FilePVKey{}
	if err := tmjson.Unmarshal(keyJSONBytes, &pvKey); err != nil {
		tmos.Exit(fmt.Sprintf("Error reading PrivValidator key from %v: %v\n", keyFilePath, err))
	}

	// overwrite pubkey and address for convenience
	pvKey.PubKey = pvKey.PrivKey.PubKey()
	pvKey.Address = pvKey.PubKey.Address()
	pvKey.filePath = keyFilePath

	return &FilePV{Key: pvKey}
}

// LoadOrGenFilePV loads a FilePV from the given filePath or else generates a
// new one and saves it there.
func LoadOrGenFilePV(keyFilePath string) *FilePV {
	if tmos.FileExists(keyFilePath) {
		return LoadFilePV(keyFilePath)
	}
	pv := GenFilePV(keyFilePath)
	pv.Save()
	return pv
}

// GetAddress returns the address of the validator.
func (pv *FilePV) GetAddress() types.Address {
	return pv.Key.Address
}

// GetPubKey returns the public key of the validator.
// Implements PrivValidator.
func (pv *FilePV) GetPubKey() (crypto.PubKey, error) {
	return pv.Key.PubKey, nil
}

// SignPropose signs a canonical representation of the propose, along with
// the chainID. Implements PrivValidator.
func (pv *FilePV) SignPropose(chainID string, propose *types.Propose) error {
	sig, err := pv.Key.PrivKey.Sign(propose.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing propose: %v", err)
	}
	propose.Signature = sig
	return nil
}

// SignPrevote signs a canonical representation of the prevote, along with
// the chainID. Implements PrivValidator.
func (pv *FilePV) SignPrevote(chainID string, prevote *types.Prevote) error {
	sig, err := pv.Key.PrivKey.Sign(prevote.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing prevote: %v", err)
	}
	prevote.Signature = sig
	return nil
}

// SignPrecommit signs a canonical representation of the precommit, along
// with the chainID. Implements PrivValidator.
func (pv *FilePV) SignPrecommit(chainID string, precommit *types.Precommit) error {
	sig, err := pv.Key.PrivKey.Sign(precommit.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing precommit: %v", err)
	}
	precommit.Signature = sig
	return nil
}

// SignStatus signs a canonical representation of the status announcement,
// along with the chainID. Implements PrivValidator.
func (pv *FilePV) SignStatus(chainID string, status *types.Status) error {
	sig, err := pv.Key.PrivKey.Sign(status.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing status: %v", err)
	}
	status.Signature = sig
	return nil
}

// Save persists the FilePV to disk.
func (pv *FilePV) Save() {
	pv.Key.Save()
}

// String returns a string representation of the FilePV.
func (pv *FilePV) String() string {
	return fmt.Sprintf("PrivValidator{%v}", pv.GetAddress())
}
