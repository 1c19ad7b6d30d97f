package rpc

import rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpcserver.RPCFunc{
	"broadcast_tx":    rpcserver.NewRPCFunc(BroadcastTxAsync, "tx"),
	"unconfirmed_txs": rpcserver.NewRPCFunc(UnconfirmedTxs, ""),
	"consensus_state": rpcserver.NewRPCFunc(ConsensusState, ""),
	"chain_info":      rpcserver.NewRPCFunc(ChainInfo, ""),
	"block":           rpcserver.NewRPCFunc(Block, "height"),
	"block_by_hash":   rpcserver.NewRPCFunc(BlockByHash, "hash"),
	"metrics":         rpcserver.NewRPCFunc(JSONMetrics, "label"),
}
