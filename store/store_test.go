package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/tmhash"
	"github.com/tendermint/tendermint/libs/log"

	"permachain/types"
)

func newTestStore(t *testing.T) *BlockStore {
	t.Helper()
	return NewMemStore(log.TestingLogger())
}

func commitTestBlock(t *testing.T, bs *BlockStore, height types.Height, txs types.Txs, parent []byte) *types.Block {
	t.Helper()
	block := &types.Block{
		Header: types.Header{
			ChainID:       "store_test",
			Height:        height,
			Round:         types.InitialRound,
			Time:          time.Now(),
			LastBlockHash: parent,
			StateHash:     tmhash.Sum([]byte{byte(height)}),
		},
		Data: types.Data{Txs: txs},
	}
	block.Hash()

	fork := bs.Fork()
	for _, tx := range txs {
		require.NoError(t, fork.Set(TxStoreKey(tx.Hash()), tx))
	}
	patch, err := fork.Commit(block)
	require.NoError(t, err)
	require.NoError(t, bs.Merge(patch))
	return block
}

func TestEmptyStore(t *testing.T) {
	bs := newTestStore(t)
	assert.Nil(t, bs.Head())
	assert.Nil(t, bs.LoadBlock(1))
	assert.EqualValues(t, 0, bs.Height())
}

func TestSaveGenesisBlock(t *testing.T) {
	bs := newTestStore(t)
	vals, _ := types.RandValidatorSet(4)
	gb := types.MakeGenesisBlock("store_test", time.Now(), vals.Hash())

	require.NoError(t, bs.SaveGenesisBlock(gb))
	assert.EqualValues(t, 0, bs.Height())
	head := bs.Head()
	require.NotNil(t, head)
	assert.Equal(t, gb.Hash(), head.Hash())
	assert.Equal(t, gb.StateHash, bs.StateHash())

	// a second genesis is refused
	assert.Error(t, bs.SaveGenesisBlock(gb))
}

func TestMergeMovesHead(t *testing.T) {
	bs := newTestStore(t)
	txs := types.Txs{types.Tx("a"), types.Tx("b")}
	b1 := commitTestBlock(t, bs, 1, txs, tmhash.Sum([]byte("genesis")))

	assert.EqualValues(t, 1, bs.Height())
	assert.Equal(t, b1.StateHash, bs.StateHash())

	loaded := bs.LoadBlock(1)
	require.NotNil(t, loaded)
	assert.Equal(t, b1.Hash(), loaded.Hash())
	assert.Len(t, loaded.Data.Txs, 2)

	byHash := bs.LoadBlockByHash(b1.Hash())
	require.NotNil(t, byHash)
	assert.EqualValues(t, 1, byHash.Height)

	// committed tx bodies are readable through a fresh fork
	fork := bs.Fork()
	body, err := fork.Get(TxStoreKey(txs[0].Hash()))
	require.NoError(t, err)
	assert.Equal(t, []byte(txs[0]), body)
}

func TestForkIsolation(t *testing.T) {
	bs := newTestStore(t)
	commitTestBlock(t, bs, 1, nil, tmhash.Sum([]byte("genesis")))

	fork := bs.Fork()
	require.NoError(t, fork.Set([]byte("scratch"), []byte("value")))

	// an uncommitted fork never leaks into the store
	bz, err := bs.db.Get([]byte("scratch"))
	require.NoError(t, err)
	assert.Nil(t, bz)

	// the fork reads its own writes and falls through for the rest
	got, err := fork.Get([]byte("scratch"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestHeadSurvivesReopen(t *testing.T) {
	bs := newTestStore(t)
	b1 := commitTestBlock(t, bs, 1, types.Txs{types.Tx("x")}, tmhash.Sum([]byte("genesis")))

	reopened, err := NewBlockStore(bs.db, log.TestingLogger())
	require.NoError(t, err)
	assert.EqualValues(t, 1, reopened.Height())
	assert.Equal(t, b1.StateHash, reopened.StateHash())
}
