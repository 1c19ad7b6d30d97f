package rpc

import (
	coretypes "github.com/tendermint/tendermint/rpc/core/types"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	mempl "permachain/mempool"
	"permachain/types"
)

// BroadcastTxAsync submits a transaction to the local pool and returns its
// hash without waiting for it to commit; the mempool reactor gossips it from
// there.
func BroadcastTxAsync(ctx *rpctypes.Context, tx types.Tx) (*coretypes.ResultBroadcastTx, error) {
	if err := env.Mempool.CheckTx(tx, mempl.TxInfo{}); err != nil {
		return nil, err
	}
	return &coretypes.ResultBroadcastTx{Hash: tx.Hash()}, nil
}

type ResultUnconfirmedTxs struct {
	Count      int   `json:"n_txs"`
	TotalBytes int64 `json:"total_bytes"`
}

// UnconfirmedTxs reports the size of the local transaction pool.
func UnconfirmedTxs(ctx *rpctypes.Context) (*ResultUnconfirmedTxs, error) {
	return &ResultUnconfirmedTxs{
		Count:      env.Mempool.Size(),
		TotalBytes: env.Mempool.TxsBytes(),
	}, nil
}
