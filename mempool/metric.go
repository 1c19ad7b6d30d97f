package mempool

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
)

func newMemMetric() *memMetric {
	return &memMetric{}
}

type memMetric struct {
	mtx           sync.RWMutex
	TxsNum        int   `json:"txs_num"`         // transactions currently pooled
	TotalTxsBytes int64 `json:"total_txs_bytes"` // total size of pooled transactions
	RejectedNum   int64 `json:"rejected_num"`    // transactions refused by CheckTx
}

func (mm *memMetric) JSONString() string {
	mm.mtx.RLock()
	defer mm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(mm)
	return s
}

func (mm *memMetric) MarkTxsNum(txsNum int) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.TxsNum = txsNum
}

func (mm *memMetric) MarkTotalTxsBytes(totalTxsBytes int64) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.TotalTxsBytes = totalTxsBytes
}

func (mm *memMetric) MarkRejected() {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.RejectedNum++
}
