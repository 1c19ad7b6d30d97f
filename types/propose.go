package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Propose is a leader's proposed transaction ordering for (height, round).
// It carries tx hashes only; bodies travel through the mempool gossip or the
// catch-up protocol. An empty TxHashes list is a skip-propose: it commits a
// block with zero transactions whose state hash equals the parent's.
type Propose struct {
	Validator int32              `json:"validator"`
	Height    Height             `json:"height"`
	Round     Round              `json:"round"`
	PrevHash  tmbytes.HexBytes   `json:"prev_hash"`
	TxHashes  []tmbytes.HexBytes `json:"tx_hashes"`

	Signature tmbytes.HexBytes `json:"signature"`
}

// NewPropose builds an unsigned propose for the given tx ordering.
func NewPropose(validator int32, height Height, round Round, prevHash tmbytes.HexBytes, txHashes []tmbytes.HexBytes) *Propose {
	return &Propose{
		Validator: validator,
		Height:    height,
		Round:     round,
		PrevHash:  prevHash,
		TxHashes:  txHashes,
	}
}

// NewSkipPropose builds an unsigned skip-propose (intentionally empty block).
func NewSkipPropose(validator int32, height Height, round Round, prevHash tmbytes.HexBytes) *Propose {
	return NewPropose(validator, height, round, prevHash, nil)
}

// IsSkip reports whether the propose signals an intentionally empty block.
func (p *Propose) IsSkip() bool {
	return len(p.TxHashes) == 0
}

// Hash identifies the propose in votes and vote sets.
func (p *Propose) Hash() tmbytes.HexBytes {
	return tmhash.Sum(p.SignBytes(""))
}

// SignBytes returns the canonical bytes covered by the proposer's signature.
func (p *Propose) SignBytes(chainID string) []byte {
	cp := *p
	cp.Signature = nil
	return signBytes(chainID, &cp)
}

func (p *Propose) ValidateBasic() error {
	if p == nil {
		return errors.New("nil propose")
	}
	if p.Validator < 0 {
		return errors.New("propose has negative validator index")
	}
	if p.Height < InitialHeight {
		return fmt.Errorf("propose has invalid height %v", p.Height)
	}
	if p.Round < InitialRound {
		return fmt.Errorf("propose has invalid round %v", p.Round)
	}
	if len(p.Signature) == 0 {
		return errors.New("propose is not signed")
	}
	for _, h := range p.TxHashes {
		if len(h) != tmhash.Size {
			return fmt.Errorf("propose carries malformed tx hash %X", h)
		}
	}
	return nil
}

func (p *Propose) String() string {
	if p == nil {
		return "nil-Propose"
	}
	return fmt.Sprintf("Propose{%v/%v val#%d txs=%d %X}",
		p.Height, p.Round, p.Validator, len(p.TxHashes), tmbytes.Fingerprint(p.Hash()))
}
