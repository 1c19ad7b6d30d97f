package state

import (
	"time"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"permachain/types"
)

// State is the chain head as seen after the last commit. It is a value:
// the executor returns a new State on commit and the caller swaps it in.
type State struct {
	ChainID    string
	Validators *types.ValidatorSet

	LastBlockHeight types.Height
	LastBlockHash   tmbytes.HexBytes
	LastStateHash   tmbytes.HexBytes
	LastBlockTime   time.Time
}

// MakeGenesisState builds the state a fresh chain starts from, anchored on
// the height-0 genesis block.
func MakeGenesisState(genDoc *types.GenesisDoc) (State, *types.Block) {
	vals := genDoc.ValidatorSet()
	genesisBlock := types.MakeGenesisBlock(genDoc.ChainID, genDoc.GenesisTime, vals.Hash())
	return State{
		ChainID:         genDoc.ChainID,
		Validators:      vals,
		LastBlockHeight: 0,
		LastBlockHash:   genesisBlock.Hash(),
		LastStateHash:   genesisBlock.StateHash,
		LastBlockTime:   genDoc.GenesisTime,
	}, genesisBlock
}

// Copy returns a deep copy of the state.
func (state State) Copy() State {
	newState := State{
		ChainID:         state.ChainID,
		Validators:      state.Validators.Copy(),
		LastBlockHeight: state.LastBlockHeight,
		LastBlockHash:   make(tmbytes.HexBytes, len(state.LastBlockHash)),
		LastStateHash:   make(tmbytes.HexBytes, len(state.LastStateHash)),
		LastBlockTime:   state.LastBlockTime,
	}
	copy(newState.LastBlockHash, state.LastBlockHash)
	copy(newState.LastStateHash, state.LastStateHash)
	return newState
}

// NextHeight is the height consensus is currently deciding.
func (state State) NextHeight() types.Height {
	return state.LastBlockHeight.Next()
}

func (state State) IsEmpty() bool {
	return state.Validators.IsNilOrEmpty()
}
