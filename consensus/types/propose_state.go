package types

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"permachain/types"
)

// ProposeState tracks everything the node knows about one propose: the
// message itself, which of its transactions are still missing from the local
// pool, and the block hash once the propose has been executed.
//
// A propose with unknown transactions cannot be executed or prevoted; the
// node requests the missing bodies and completes the state as they arrive.
type ProposeState struct {
	propose *types.Propose
	hash    tmbytes.HexBytes

	unknownTxs map[[types.TxKeySize]byte]struct{}

	// blockHash is set after execution; empty means not executed yet.
	blockHash tmbytes.HexBytes
}

// NewProposeState indexes the propose and marks every transaction the pool
// does not hold yet as unknown.
func NewProposeState(propose *types.Propose, hasTx func(key [types.TxKeySize]byte) bool) *ProposeState {
	unknown := make(map[[types.TxKeySize]byte]struct{})
	for _, h := range propose.TxHashes {
		key := types.TxKeyFromHash(h)
		if !hasTx(key) {
			unknown[key] = struct{}{}
		}
	}
	return &ProposeState{
		propose:    propose,
		hash:       propose.Hash(),
		unknownTxs: unknown,
	}
}

func (ps *ProposeState) Propose() *types.Propose { return ps.propose }

func (ps *ProposeState) Hash() tmbytes.HexBytes { return ps.hash }

func (ps *ProposeState) Height() types.Height { return ps.propose.Height }

func (ps *ProposeState) Round() types.Round { return ps.propose.Round }

// HasUnknownTxs reports whether any proposed transaction body is missing.
func (ps *ProposeState) HasUnknownTxs() bool { return len(ps.unknownTxs) > 0 }

// UnknownTxHashes lists the missing transaction hashes, for a transactions
// request.
func (ps *ProposeState) UnknownTxHashes() []tmbytes.HexBytes {
	hashes := make([]tmbytes.HexBytes, 0, len(ps.unknownTxs))
	for key := range ps.unknownTxs {
		k := key
		hashes = append(hashes, k[:])
	}
	return hashes
}

// MarkTxKnown removes the transaction from the unknown set and reports
// whether the propose became complete with this transaction.
func (ps *ProposeState) MarkTxKnown(key [types.TxKeySize]byte) (completed bool) {
	if _, ok := ps.unknownTxs[key]; !ok {
		return false
	}
	delete(ps.unknownTxs, key)
	return len(ps.unknownTxs) == 0
}

// BlockHash returns the hash of the executed block, or nil before execution.
func (ps *ProposeState) BlockHash() tmbytes.HexBytes { return ps.blockHash }

func (ps *ProposeState) Executed() bool { return len(ps.blockHash) > 0 }

// SetBlockHash records the execution result. Execution is deterministic, so
// a second call can only carry the same hash.
func (ps *ProposeState) SetBlockHash(hash tmbytes.HexBytes) {
	ps.blockHash = hash
}
