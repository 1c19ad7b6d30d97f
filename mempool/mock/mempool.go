package mock

import (
	mempl "permachain/mempool"
	"permachain/types"
)

// Mempool is an empty implementation of a Mempool, useful for testing.
type Mempool struct{}

var _ mempl.Mempool = Mempool{}

func (Mempool) Lock()     {}
func (Mempool) Unlock()   {}
func (Mempool) Size() int { return 0 }
func (Mempool) CheckTx(_ types.Tx, _ mempl.TxInfo) error {
	return nil
}
func (Mempool) ReapMaxTxs(_ int) types.Txs               { return types.Txs{} }
func (Mempool) GetTx(_ [types.TxKeySize]byte) types.Tx   { return nil }
func (Mempool) HasTx(_ [types.TxKeySize]byte) bool       { return false }
func (Mempool) Update(_ types.Height, _ types.Txs) error { return nil }
func (Mempool) Flush()                                   {}
func (Mempool) TxsBytes() int64                          { return 0 }
