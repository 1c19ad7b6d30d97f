package rpc

import (
	"permachain/consensus"
	"permachain/libs/metric"
	"permachain/mempool"
	"permachain/store"
)

var env *Environment

func SetEnvironment(e *Environment) {
	env = e
}

// Environment holds the node internals the rpc handlers read from.
type Environment struct {
	Mempool   mempool.Mempool
	Consensus *consensus.ConsensusState
	Store     store.Store

	MetricSet *metric.MetricSet
}
