package state

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/tmhash"
	"github.com/tendermint/tendermint/libs/log"

	"permachain/mempool"
	"permachain/store"
	"permachain/types"
)

// ErrInvalidBlock wraps a block validation failure during apply.
func ErrInvalidBlock(err error) error {
	return errors.Wrap(err, "invalid block")
}

// BlockExecutor turns proposes into blocks and commits them. Execution is
// deterministic: every correct node executing the same propose on the same
// parent state obtains the same (block hash, state hash).
type BlockExecutor interface {
	// CreatePropose packs pooled transactions in arrival order into an
	// unsigned propose for (height, round). An empty pool yields a
	// skip-propose.
	CreatePropose(state State, height types.Height, round types.Round, proposer int32) *types.Propose

	// ExecutePropose applies the propose's transactions to a store fork
	// and returns the resulting candidate block. Nothing is persisted.
	ExecutePropose(state State, propose *types.Propose, txs types.Txs, blockTime time.Time) (*types.Block, error)

	// CommitBlock merges the block's patch into the store as one atomic
	// batch, purges its transactions from the pool and returns the next
	// state. A merge error means the store may be corrupt; the caller
	// must treat it as fatal.
	CommitBlock(state State, block *types.Block) (State, error)

	// ApplyBlock validates and commits a block received through catch-up,
	// re-executing it to check the claimed state hash.
	ApplyBlock(state State, block *types.Block) (State, error)

	SetLogger(logger log.Logger)
}

func NewBlockExecutor(bs store.Store, mem mempool.Mempool, options ...BlockExecutorOption) BlockExecutor {
	exec := &blockExecutor{
		store:         bs,
		mempool:       mem,
		maxProposeTxs: defaultMaxProposeTxs,
		logger:        log.NewNopLogger(),
	}
	for _, option := range options {
		option(exec)
	}
	return exec
}

type BlockExecutorOption func(*blockExecutor)

// SetMaxProposeTxs caps the number of transactions a leader packs into one
// propose.
func SetMaxProposeTxs(max int) BlockExecutorOption {
	return func(exec *blockExecutor) {
		exec.maxProposeTxs = max
	}
}

const defaultMaxProposeTxs = 10000

type blockExecutor struct {
	store   store.Store
	mempool mempool.Mempool

	maxProposeTxs int

	logger log.Logger
}

// SetLogger implements BlockExecutor
func (exec *blockExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// CreatePropose implements BlockExecutor
func (exec *blockExecutor) CreatePropose(state State, height types.Height, round types.Round, proposer int32) *types.Propose {
	txs := exec.mempool.ReapMaxTxs(exec.maxProposeTxs)
	if len(txs) == 0 {
		return types.NewSkipPropose(proposer, height, round, state.LastBlockHash)
	}
	return types.NewPropose(proposer, height, round, state.LastBlockHash, txs.Hashes())
}

// ExecutePropose implements BlockExecutor
func (exec *blockExecutor) ExecutePropose(state State, propose *types.Propose, txs types.Txs, blockTime time.Time) (*types.Block, error) {
	if len(txs) != len(propose.TxHashes) {
		return nil, fmt.Errorf("propose names %d txs, got %d bodies", len(propose.TxHashes), len(txs))
	}
	for i, tx := range txs {
		if !bytes.Equal(tx.Hash(), propose.TxHashes[i]) {
			return nil, fmt.Errorf("tx #%d body does not match the proposed hash", i)
		}
	}

	block := exec.buildBlock(state, propose, txs, blockTime)

	// Dry-run against a fork to make sure the patch can be produced;
	// the fork is discarded, commit re-executes deterministically.
	if _, err := exec.applyToFork(block); err != nil {
		return nil, err
	}
	return block, nil
}

// CommitBlock implements BlockExecutor
func (exec *blockExecutor) CommitBlock(state State, block *types.Block) (State, error) {
	patch, err := exec.applyToFork(block)
	if err != nil {
		return state, err
	}
	if err := exec.store.Merge(patch); err != nil {
		return state, err
	}

	exec.mempool.Lock()
	err = exec.mempool.Update(block.Height, block.Data.Txs)
	exec.mempool.Unlock()
	if err != nil {
		exec.logger.Error("mempool update after commit failed", "height", block.Height, "err", err)
	}

	newState := state.Copy()
	newState.LastBlockHeight = block.Height
	newState.LastBlockHash = block.Hash()
	newState.LastStateHash = block.StateHash
	newState.LastBlockTime = block.Time
	return newState, nil
}

// ApplyBlock implements BlockExecutor
func (exec *blockExecutor) ApplyBlock(state State, block *types.Block) (State, error) {
	if err := exec.validateBlock(state, block); err != nil {
		return state, ErrInvalidBlock(err)
	}
	return exec.CommitBlock(state, block)
}

// buildBlock assembles the candidate block for a propose. A skip propose
// inherits the parent's state hash; otherwise the new state root commits to
// the parent root and the ordered transaction set.
func (exec *blockExecutor) buildBlock(state State, propose *types.Propose, txs types.Txs, blockTime time.Time) *types.Block {
	stateHash := state.LastStateHash
	if len(txs) > 0 {
		stateHash = tmhash.Sum(append(append([]byte{}, state.LastStateHash...), txs.Hash()...))
	}

	block := &types.Block{
		Header: types.Header{
			ChainID:        state.ChainID,
			Height:         propose.Height,
			Round:          propose.Round,
			Time:           blockTime,
			LastBlockHash:  state.LastBlockHash,
			StateHash:      stateHash,
			ValidatorsHash: state.Validators.Hash(),
			ProposerId:     propose.Validator,
		},
		Data: types.Data{Txs: txs},
	}
	block.Hash()
	return block
}

// applyToFork writes the block's transactions into a store fork and seals it
// into a patch.
func (exec *blockExecutor) applyToFork(block *types.Block) (*store.Patch, error) {
	fork := exec.store.Fork()
	for _, tx := range block.Data.Txs {
		if err := fork.Set(store.TxStoreKey(tx.Hash()), tx); err != nil {
			return nil, errors.Wrap(err, "writing tx to fork")
		}
	}
	return fork.Commit(block)
}

// validateBlock checks a catch-up block against the current chain head.
func (exec *blockExecutor) validateBlock(state State, block *types.Block) error {
	if err := block.ValidateBasic(); err != nil {
		return err
	}
	if block.ChainID != state.ChainID {
		return fmt.Errorf("block for chain %q, ours is %q", block.ChainID, state.ChainID)
	}
	if block.Height != state.NextHeight() {
		return fmt.Errorf("block height %v, expected %v", block.Height, state.NextHeight())
	}
	if !bytes.Equal(block.LastBlockHash, state.LastBlockHash) {
		return fmt.Errorf("block parent %X does not match chain head %X",
			block.LastBlockHash, state.LastBlockHash)
	}

	expectedState := state.LastStateHash
	if len(block.Data.Txs) > 0 {
		expectedState = tmhash.Sum(append(append([]byte{}, state.LastStateHash...), block.Data.Txs.Hash()...))
	}
	if !bytes.Equal(block.StateHash, expectedState) {
		return fmt.Errorf("block state hash %X, re-execution yields %X", block.StateHash, expectedState)
	}
	return nil
}
