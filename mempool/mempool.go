package mempool

import (
	"github.com/tendermint/tendermint/p2p"

	"permachain/types"
)

// Mempool holds transactions that are known but not yet committed. The
// consensus core reads it to build proposes, to complete proposes whose tx
// bodies arrived separately, and to answer transaction requests from peers.
type Mempool interface {
	// CheckTx validates a new transaction and adds it to the pool.
	CheckTx(tx types.Tx, txInfo TxInfo) error

	// ReapMaxTxs returns up to max transactions in arrival order; max < 0
	// means all of them.
	ReapMaxTxs(max int) types.Txs

	// GetTx returns the transaction body for the key, or nil.
	GetTx(key [types.TxKeySize]byte) types.Tx

	// HasTx reports whether the pool holds the transaction.
	HasTx(key [types.TxKeySize]byte) bool

	// Lock must be held around Update.
	Lock()
	Unlock()

	// Update drops committed transactions from the pool after a block at
	// the given height commits. Caller holds Lock.
	Update(height types.Height, committed types.Txs) error

	// Flush drops every transaction and clears the seen-cache.
	Flush()

	Size() int
	TxsBytes() int64
}

//--------------------------------------------------------------------------------

type PreCheckFunc func(types.Tx) error

// TxInfo are parameters that get passed when attempting to add a tx to the
// mempool.
type TxInfo struct {
	// SenderID is the internal peer ID used in the mempool to identify the
	// sender, storing 2 bytes with each tx instead of 20 bytes for the p2p.ID.
	SenderID uint16
	// SenderP2PID is the actual p2p.ID of the sender, used e.g. for logging.
	SenderP2PID p2p.ID
}
