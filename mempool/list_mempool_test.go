package mempool

import (
	"crypto/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"

	"permachain/types"
)

type cleanupFunc func()

// ----- utility func -----

func newMempool() (*ListMempool, cleanupFunc) {
	return newMempoolWithConfig(cfg.ResetTestRoot("mempool_test"))
}

func newMempoolWithConfig(config *cfg.Config) (*ListMempool, cleanupFunc) {
	mempool := NewListMempool(config.Mempool, types.InitialHeight)
	mempool.SetLogger(log.TestingLogger())
	return mempool, func() { os.RemoveAll(config.RootDir) }
}

func checkTxs(t *testing.T, mempool Mempool, count int, peerID uint16) types.Txs {
	txs := make(types.Txs, count)
	txInfo := TxInfo{
		SenderID: peerID,
	}
	for i := 0; i < count; i++ {
		txBytes := make([]byte, 20)
		if _, err := rand.Read(txBytes); err != nil {
			t.Error(err)
		}
		txs[i] = txBytes
		if err := mempool.CheckTx(txs[i], txInfo); err != nil {
			t.Fatalf("checkTx failed: %v while checking #%d tx", err, i)
		}
	}

	return txs
}

// ----- tests -----

func TestBasicMempool(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	txs := checkTxs(t, mem, 1, UnknownPeerID)
	assert.Equal(t, 1, mem.Size())
	assert.Equal(t, int64(20), mem.TxsBytes())
	assert.True(t, mem.HasTx(types.TxKey(txs[0])))
	assert.Equal(t, txs[0], mem.GetTx(types.TxKey(txs[0])))

	mem.Flush()
	assert.Equal(t, 0, mem.Size())
	assert.Equal(t, int64(0), mem.TxsBytes())
	assert.False(t, mem.HasTx(types.TxKey(txs[0])))
}

func TestCheckTxDuplicate(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	txs := checkTxs(t, mem, 1, UnknownPeerID)
	err := mem.CheckTx(txs[0], TxInfo{SenderID: UnknownPeerID})
	assert.Equal(t, ErrTxInCache, err)
	assert.Equal(t, 1, mem.Size())
}

func TestReapMaxTxs(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	tests := []struct {
		numTxsToCreate int
		max            int
		expectedNumTxs int
	}{
		{20, -1, 20},
		{20, 0, 0},
		{20, 7, 7},
		{20, 50, 20},
	}

	for index, test := range tests {
		checkTxs(t, mem, test.numTxsToCreate, UnknownPeerID)
		txsFromReap := mem.ReapMaxTxs(test.max)
		assert.Equal(t, test.expectedNumTxs, len(txsFromReap),
			"Got %v tx, expected %d, tc #%d",
			len(txsFromReap), test.expectedNumTxs, index)
		mem.Flush()
	}
}

func TestReapPreservesArrivalOrder(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	txs := checkTxs(t, mem, 10, UnknownPeerID)
	reaped := mem.ReapMaxTxs(-1)
	require.Len(t, reaped, 10)
	for i := range txs {
		assert.Equal(t, txs[i], reaped[i], "tx #%d out of order", i)
	}
}

func TestUpdate(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	err := mem.CheckTx(types.Tx{0x02}, TxInfo{})
	require.NoError(t, err)
	err = mem.CheckTx(types.Tx{0x03}, TxInfo{})
	require.NoError(t, err)

	mem.Lock()
	err = mem.Update(1, types.Txs{types.Tx{0x02}})
	mem.Unlock()
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Size())
	assert.False(t, mem.HasTx(types.TxKey(types.Tx{0x02})))

	// a committed tx stays in the cache and is not re-added
	err = mem.CheckTx(types.Tx{0x02}, TxInfo{})
	assert.Equal(t, ErrTxInCache, err)
	assert.Equal(t, 1, mem.Size())
}

func TestHasTx(t *testing.T) {
	mem, cleanup := newMempool()
	defer cleanup()

	txs := checkTxs(t, mem, 3, UnknownPeerID)
	for _, tx := range txs {
		require.True(t, mem.HasTx(types.TxKey(tx)))
	}
	assert.False(t, mem.HasTx(types.TxKey(types.Tx("never pooled"))))
}
