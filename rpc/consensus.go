package rpc

import (
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"permachain/consensus"
	"permachain/types"
)

type ResultConsensusState struct {
	RoundState consensus.RoundStateSnapshot `json:"round_state"`
}

// ConsensusState reports where the local state machine currently is.
func ConsensusState(ctx *rpctypes.Context) (*ResultConsensusState, error) {
	return &ResultConsensusState{RoundState: env.Consensus.Snapshot()}, nil
}

type ResultChainInfo struct {
	Height    types.Height     `json:"height"`
	BlockHash tmbytes.HexBytes `json:"block_hash"`
	StateHash tmbytes.HexBytes `json:"state_hash"`
}

// ChainInfo reports the committed chain head.
func ChainInfo(ctx *rpctypes.Context) (*ResultChainInfo, error) {
	head := env.Store.Head()
	if head == nil {
		return nil, fmt.Errorf("store is empty")
	}
	return &ResultChainInfo{
		Height:    head.Height,
		BlockHash: head.Hash(),
		StateHash: head.StateHash,
	}, nil
}

type ResultBlock struct {
	Block *types.Block `json:"block"`
}

// Block returns the committed block at the given height.
func Block(ctx *rpctypes.Context, height int64) (*ResultBlock, error) {
	block := env.Store.LoadBlock(types.Height(height))
	if block == nil {
		return nil, fmt.Errorf("no block at height %d", height)
	}
	return &ResultBlock{Block: block}, nil
}

// BlockByHash returns the committed block with the given hash.
func BlockByHash(ctx *rpctypes.Context, hash tmbytes.HexBytes) (*ResultBlock, error) {
	block := env.Store.LoadBlockByHash(hash)
	if block == nil {
		return nil, fmt.Errorf("no block with hash %X", hash)
	}
	return &ResultBlock{Block: block}, nil
}
