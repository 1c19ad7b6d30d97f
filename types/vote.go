package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Prevote signals that a validator is willing to commit to a propose.
// LockedRound carries the voter's own lock at signing time (RoundNone when
// the voter is not locked); peers use it to request the prevote evidence
// that justifies a lock from a later round.
type Prevote struct {
	Validator   int32            `json:"validator"`
	Height      Height           `json:"height"`
	Round       Round            `json:"round"`
	ProposeHash tmbytes.HexBytes `json:"propose_hash"`
	LockedRound Round            `json:"locked_round"`

	Signature tmbytes.HexBytes `json:"signature"`
}

func NewPrevote(validator int32, height Height, round Round, proposeHash tmbytes.HexBytes, lockedRound Round) *Prevote {
	return &Prevote{
		Validator:   validator,
		Height:      height,
		Round:       round,
		ProposeHash: proposeHash,
		LockedRound: lockedRound,
	}
}

// ValidatorIndex implements ConsensusVote.
func (v *Prevote) ValidatorIndex() int32 { return v.Validator }

// SignBytes returns the canonical bytes covered by the voter's signature.
func (v *Prevote) SignBytes(chainID string) []byte {
	cp := *v
	cp.Signature = nil
	return signBytes(chainID, &cp)
}

func (v *Prevote) ValidateBasic() error {
	if v == nil {
		return errors.New("nil prevote")
	}
	if v.Validator < 0 {
		return errors.New("prevote has negative validator index")
	}
	if v.Height < InitialHeight {
		return fmt.Errorf("prevote has invalid height %v", v.Height)
	}
	if v.Round < InitialRound {
		return fmt.Errorf("prevote has invalid round %v", v.Round)
	}
	if len(v.ProposeHash) != tmhash.Size {
		return fmt.Errorf("prevote has malformed propose hash %X", v.ProposeHash)
	}
	if v.LockedRound >= v.Round {
		return errors.New("prevote locked round must precede its round")
	}
	if len(v.Signature) == 0 {
		return errors.New("prevote is not signed")
	}
	return nil
}

func (v *Prevote) String() string {
	if v == nil {
		return "nil-Prevote"
	}
	return fmt.Sprintf("Prevote{%v/%v val#%d %X locked=%v}",
		v.Height, v.Round, v.Validator, tmbytes.Fingerprint(v.ProposeHash), v.LockedRound)
}

// Precommit signals that a validator has locked on a propose after observing
// a prevote quorum, and names the block hash that executing the propose must
// yield. Time is the voter's wall clock at signing.
type Precommit struct {
	Validator   int32            `json:"validator"`
	Height      Height           `json:"height"`
	Round       Round            `json:"round"`
	ProposeHash tmbytes.HexBytes `json:"propose_hash"`
	BlockHash   tmbytes.HexBytes `json:"block_hash"`
	Time        time.Time        `json:"time"`

	Signature tmbytes.HexBytes `json:"signature"`
}

func NewPrecommit(validator int32, height Height, round Round, proposeHash, blockHash tmbytes.HexBytes, t time.Time) *Precommit {
	return &Precommit{
		Validator:   validator,
		Height:      height,
		Round:       round,
		ProposeHash: proposeHash,
		BlockHash:   blockHash,
		Time:        t,
	}
}

// ValidatorIndex implements ConsensusVote.
func (v *Precommit) ValidatorIndex() int32 { return v.Validator }

// SignBytes returns the canonical bytes covered by the voter's signature.
func (v *Precommit) SignBytes(chainID string) []byte {
	cp := *v
	cp.Signature = nil
	return signBytes(chainID, &cp)
}

func (v *Precommit) ValidateBasic() error {
	if v == nil {
		return errors.New("nil precommit")
	}
	if v.Validator < 0 {
		return errors.New("precommit has negative validator index")
	}
	if v.Height < InitialHeight {
		return fmt.Errorf("precommit has invalid height %v", v.Height)
	}
	if v.Round < InitialRound {
		return fmt.Errorf("precommit has invalid round %v", v.Round)
	}
	if len(v.ProposeHash) != tmhash.Size {
		return fmt.Errorf("precommit has malformed propose hash %X", v.ProposeHash)
	}
	if len(v.BlockHash) != tmhash.Size {
		return fmt.Errorf("precommit has malformed block hash %X", v.BlockHash)
	}
	if len(v.Signature) == 0 {
		return errors.New("precommit is not signed")
	}
	return nil
}

func (v *Precommit) String() string {
	if v == nil {
		return "nil-Precommit"
	}
	return fmt.Sprintf("Precommit{%v/%v val#%d %X -> %X}",
		v.Height, v.Round, v.Validator, tmbytes.Fingerprint(v.ProposeHash), tmbytes.Fingerprint(v.BlockHash))
}

// ConsensusVote abstracts Prevote and Precommit for vote-set bookkeeping.
type ConsensusVote interface {
	ValidatorIndex() int32
}
