package mempool

import (
	"container/list"
	"sync"
	"sync/atomic"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"

	"permachain/types"
)

func NewListMempool(config *cfg.MempoolConfig, height types.Height, options ...ListMempoolOption) *ListMempool {
	mem := &ListMempool{
		height: height.Int64(),
		config: config,
		txs:    clist.New(),
		logger: log.NewNopLogger(),
		metric: newMemMetric(),
	}

	if config.CacheSize > 0 {
		mem.cache = newMapTxCache(config.CacheSize)
	} else {
		mem.cache = nopTxCache{}
	}

	for _, option := range options {
		option(mem)
	}

	return mem
}

// ListMempool keeps transactions in a concurrent linked list in arrival
// order, with a lookup map from tx key to list element. The list order is the
// order a leader proposes transactions in.
type ListMempool struct {
	// Atomic integers
	height   int64 // the last block Update()'d to
	txsBytes int64 // total size of mempool, in bytes

	config *cfg.MempoolConfig

	updateMtx sync.RWMutex
	preCheck  PreCheckFunc

	txs    *clist.CList
	txsMap sync.Map // tx key -> *clist.CElement

	// Keep a cache of already-seen txs so gossip loops terminate.
	cache txCache

	metric *memMetric
	logger log.Logger
}

type ListMempoolOption func(mempool *ListMempool)

func SetPreCheck(precheck PreCheckFunc) ListMempoolOption {
	return func(mem *ListMempool) {
		mem.preCheck = precheck
	}
}

func (mem *ListMempool) SetLogger(logger log.Logger) {
	mem.logger = logger
}

func (mem *ListMempool) CheckTx(tx types.Tx, txInfo TxInfo) error {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	if mem.config.Size > 0 && mem.txs.Len() >= mem.config.Size {
		return ErrMempoolIsFull
	}

	if mem.config.MaxTxBytes > 0 && len(tx) > mem.config.MaxTxBytes {
		return ErrTxTooLarge{Max: mem.config.MaxTxBytes, Actual: len(tx)}
	}

	if mem.preCheck != nil {
		if err := mem.preCheck(tx); err != nil {
			return err
		}
	}

	if !mem.cache.Push(tx) {
		// Record the sender anyway so gossip does not echo the tx back.
		if e, ok := mem.txsMap.Load(types.TxKey(tx)); ok {
			memTx := e.(*clist.CElement).Value.(*mempoolTx)
			memTx.senders.LoadOrStore(txInfo.SenderID, struct{}{})
		}
		return ErrTxInCache
	}

	if _, ok := mem.txsMap.Load(types.TxKey(tx)); ok {
		return ErrTxInMap
	}

	memTx := &mempoolTx{
		height: atomic.LoadInt64(&mem.height),
		tx:     tx,
	}
	memTx.senders.Store(txInfo.SenderID, struct{}{})
	mem.addTx(memTx)

	mem.logger.Debug("added tx", "tx", tx.Hash(), "pool size", mem.Size())
	return nil
}

func (mem *ListMempool) ReapMaxTxs(max int) types.Txs {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	if max < 0 {
		max = mem.txs.Len()
	}

	txs := make(types.Txs, 0, tmMin(mem.txs.Len(), max))
	for e := mem.txs.Front(); e != nil && len(txs) < max; e = e.Next() {
		memTx := e.Value.(*mempoolTx)
		txs = append(txs, memTx.tx)
	}
	return txs
}

func (mem *ListMempool) GetTx(key [types.TxKeySize]byte) types.Tx {
	if e, ok := mem.txsMap.Load(key); ok {
		return e.(*clist.CElement).Value.(*mempoolTx).tx
	}
	return nil
}

func (mem *ListMempool) HasTx(key [types.TxKeySize]byte) bool {
	_, ok := mem.txsMap.Load(key)
	return ok
}

// Lock locks the updateMtx write lock; Update callers must hold it.
func (mem *ListMempool) Lock() {
	mem.updateMtx.Lock()
}

// Unlock releases the updateMtx write lock.
func (mem *ListMempool) Unlock() {
	mem.updateMtx.Unlock()
}

// Update removes committed transactions. Committed txs stay in the cache so a
// late gossip copy is not re-added.
func (mem *ListMempool) Update(height types.Height, committed types.Txs) error {
	atomic.StoreInt64(&mem.height, height.Int64())

	for _, tx := range committed {
		mem.removeTx(types.TxKey(tx))
	}

	mem.metric.MarkTxsNum(mem.txs.Len())
	mem.metric.MarkTotalTxsBytes(mem.TxsBytes())
	return nil
}

func (mem *ListMempool) Flush() {
	mem.updateMtx.Lock()
	defer mem.updateMtx.Unlock()

	for e := mem.txs.Front(); e != nil; e = e.Next() {
		mem.txs.Remove(e)
		e.DetachPrev()
	}
	mem.txsMap.Range(func(key, _ interface{}) bool {
		mem.txsMap.Delete(key)
		return true
	})
	atomic.StoreInt64(&mem.txsBytes, 0)
	mem.cache.Reset()
}

func (mem *ListMempool) Size() int {
	return mem.txs.Len()
}

func (mem *ListMempool) TxsBytes() int64 {
	return atomic.LoadInt64(&mem.txsBytes)
}

func (mem *ListMempool) Metric() *memMetric {
	return mem.metric
}

func (mem *ListMempool) addTx(memTx *mempoolTx) {
	e := mem.txs.PushBack(memTx)
	mem.txsMap.Store(types.TxKey(memTx.tx), e)
	atomic.AddInt64(&mem.txsBytes, int64(len(memTx.tx)))

	mem.metric.MarkTxsNum(mem.txs.Len())
	mem.metric.MarkTotalTxsBytes(mem.TxsBytes())
}

func (mem *ListMempool) removeTx(key [types.TxKeySize]byte) {
	if e, ok := mem.txsMap.Load(key); ok {
		elem := e.(*clist.CElement)
		mem.txs.Remove(elem)
		elem.DetachPrev()
		mem.txsMap.Delete(key)
		atomic.AddInt64(&mem.txsBytes, int64(-len(elem.Value.(*mempoolTx).tx)))
	}
}

// TxsWaitChan unblocks when the pool becomes non-empty; used by the gossip
// routine.
func (mem *ListMempool) TxsWaitChan() <-chan struct{} {
	return mem.txs.WaitChan()
}

func (mem *ListMempool) TxsFront() *clist.CElement {
	return mem.txs.Front()
}

func tmMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ------------------------------

type txCache interface {
	Reset()
	Push(tx types.Tx) bool
	Remove(tx types.Tx)
}

// mapTxCache is a bounded LRU of recently seen tx keys.
type mapTxCache struct {
	mtx      sync.Mutex
	size     int
	cacheMap map[[types.TxKeySize]byte]*list.Element
	list     *list.List
}

func newMapTxCache(cacheSize int) *mapTxCache {
	return &mapTxCache{
		size:     cacheSize,
		cacheMap: make(map[[types.TxKeySize]byte]*list.Element, cacheSize),
		list:     list.New(),
	}
}

func (cache *mapTxCache) Reset() {
	cache.mtx.Lock()
	cache.cacheMap = make(map[[types.TxKeySize]byte]*list.Element, cache.size)
	cache.list.Init()
	cache.mtx.Unlock()
}

// Push returns false if the tx was already in the cache.
func (cache *mapTxCache) Push(tx types.Tx) bool {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	key := types.TxKey(tx)
	if moved, exists := cache.cacheMap[key]; exists {
		cache.list.MoveToBack(moved)
		return false
	}

	if cache.list.Len() >= cache.size {
		front := cache.list.Front()
		if front != nil {
			delete(cache.cacheMap, front.Value.([types.TxKeySize]byte))
			cache.list.Remove(front)
		}
	}
	e := cache.list.PushBack(key)
	cache.cacheMap[key] = e
	return true
}

func (cache *mapTxCache) Remove(tx types.Tx) {
	cache.mtx.Lock()
	key := types.TxKey(tx)
	if e, exists := cache.cacheMap[key]; exists {
		cache.list.Remove(e)
		delete(cache.cacheMap, key)
	}
	cache.mtx.Unlock()
}

type nopTxCache struct{}

func (nopTxCache) Reset()             {}
func (nopTxCache) Push(types.Tx) bool { return true }
func (nopTxCache) Remove(types.Tx)    {}

// ------------------------------

type mempoolTx struct {
	height int64 // height the tx entered the pool at

	tx      types.Tx
	senders sync.Map // SenderID -> struct{}
}

// Height returns the height for this transaction
func (memTx *mempoolTx) Height() int64 {
	return atomic.LoadInt64(&memTx.height)
}
