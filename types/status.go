package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Status announces a node's chain head. It is broadcast after every commit
// and on a periodic timer; a peer that learns of a taller chain answers with
// a BlockRequest to catch up.
type Status struct {
	Validator int32            `json:"validator"`
	Height    Height           `json:"height"`
	LastHash  tmbytes.HexBytes `json:"last_hash"`
	PoolSize  int64            `json:"pool_size"`

	Signature tmbytes.HexBytes `json:"signature"`
}

func NewStatus(validator int32, height Height, lastHash tmbytes.HexBytes, poolSize int64) *Status {
	return &Status{
		Validator: validator,
		Height:    height,
		LastHash:  lastHash,
		PoolSize:  poolSize,
	}
}

// SignBytes returns the canonical bytes covered by the sender's signature.
func (s *Status) SignBytes(chainID string) []byte {
	cp := *s
	cp.Signature = nil
	return signBytes(chainID, &cp)
}

func (s *Status) ValidateBasic() error {
	if s == nil {
		return errors.New("nil status")
	}
	if s.Validator < 0 {
		return errors.New("status has negative validator index")
	}
	if s.Height < 0 {
		return fmt.Errorf("status has invalid height %v", s.Height)
	}
	if len(s.LastHash) != 0 && len(s.LastHash) != tmhash.Size {
		return fmt.Errorf("status has malformed last hash %X", s.LastHash)
	}
	if len(s.Signature) == 0 {
		return errors.New("status is not signed")
	}
	return nil
}

func (s *Status) String() string {
	if s == nil {
		return "nil-Status"
	}
	return fmt.Sprintf("Status{val#%d height=%v pool=%d}", s.Validator, s.Height, s.PoolSize)
}
