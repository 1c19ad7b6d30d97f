package mempool

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"
)

const (
	MempoolChannel = byte(0x20)

	peerCatchupSleepIntervalMS = 100 // If peer is behind, sleep this amount

	// UnknownPeerID is the peer ID to use when running CheckTx when there is
	// no peer (e.g. RPC)
	UnknownPeerID uint16 = 0

	maxActiveIDs = math.MaxUint16
)

// Reactor gossips pooled transactions to peers. Each peer gets a routine
// that walks the pool list and sends everything the peer did not send us
// itself.
type Reactor struct {
	p2p.BaseReactor

	mtx sync.Mutex

	mempool *ListMempool
	ids     *mempoolIDs
}

type ReactorOption func(*Reactor)

type mempoolIDs struct {
	mtx       sync.RWMutex
	peerMap   map[p2p.ID]uint16
	nextID    uint16 // assumes never more than 2**16 peers
	activeIDs map[uint16]struct{}
}

// ReserveForPeer binds a short id to the peer for per-tx sender tracking.
func (ids *mempoolIDs) ReserveForPeer(peer p2p.Peer) {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	curID := ids.nextPeerID()
	ids.peerMap[peer.ID()] = curID
	ids.activeIDs[curID] = struct{}{}
}

// nextPeerID returns the next unused peer ID. Caller holds the lock.
func (ids *mempoolIDs) nextPeerID() uint16 {
	if len(ids.activeIDs) == maxActiveIDs {
		panic(fmt.Sprintf("node has maximum %d active IDs and wanted to get one more", maxActiveIDs))
	}

	_, idExists := ids.activeIDs[ids.nextID]
	for idExists {
		ids.nextID++
		_, idExists = ids.activeIDs[ids.nextID]
	}
	curID := ids.nextID
	ids.nextID++
	return curID
}

// Reclaim frees the id bound to the peer.
func (ids *mempoolIDs) Reclaim(peer p2p.Peer) {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	removedID, ok := ids.peerMap[peer.ID()]
	if ok {
		delete(ids.activeIDs, removedID)
		delete(ids.peerMap, peer.ID())
	}
}

// GetForPeer returns the id bound to the peer.
func (ids *mempoolIDs) GetForPeer(peer p2p.Peer) uint16 {
	ids.mtx.RLock()
	defer ids.mtx.RUnlock()

	return ids.peerMap[peer.ID()]
}

func newMempoolIDs() *mempoolIDs {
	return &mempoolIDs{
		peerMap:   make(map[p2p.ID]uint16),
		activeIDs: map[uint16]struct{}{0: {}},
		nextID:    1, // 0 is reserved for UnknownPeerID
	}
}

func NewReactor(mempool *ListMempool, options ...ReactorOption) *Reactor {
	reactor := &Reactor{
		mempool: mempool,
		ids:     newMempoolIDs(),
	}
	reactor.BaseReactor = *p2p.NewBaseReactor("Mempool", reactor)

	for _, option := range options {
		option(reactor)
	}

	return reactor
}

// InitPeer implements Reactor by reserving a short id for the peer.
func (memR *Reactor) InitPeer(peer p2p.Peer) p2p.Peer {
	memR.ids.ReserveForPeer(peer)
	return peer
}

// SetLogger sets the Logger on the reactor and the underlying mempool.
func (memR *Reactor) SetLogger(l log.Logger) {
	memR.Logger = l
	memR.mempool.SetLogger(l)
}

// OnStart implements p2p.BaseReactor.
func (memR *Reactor) OnStart() error {
	memR.Logger.Info("Mempool Reactor started.")
	return nil
}

// GetChannels implements Reactor by returning the list of channels for this
// reactor.
func (memR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  MempoolChannel,
			Priority:            5,
			RecvMessageCapacity: 1024 * 1024,
		},
	}
}

// AddPeer implements Reactor by starting a gossip routine for the peer.
func (memR *Reactor) AddPeer(peer p2p.Peer) {
	go memR.broadcastTxRoutine(peer)
}

// RemovePeer implements Reactor.
func (memR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	memR.ids.Reclaim(peer)
	// broadcast routine checks if peer is gone and returns
}

// Receive implements Reactor. A mempool message is one raw transaction body.
func (memR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	txInfo := TxInfo{SenderID: memR.ids.GetForPeer(src)}
	if src != nil {
		txInfo.SenderP2PID = src.ID()
	}

	if err := memR.mempool.CheckTx(msgBytes, txInfo); err != nil {
		if err != ErrTxInCache && err != ErrTxInMap {
			memR.Logger.Info("could not check tx", "src", src, "err", err)
			memR.mempool.metric.MarkRejected()
		}
	}
}

// --------------------------------

// broadcastTxRoutine walks the pool list and forwards each tx the peer has
// not already sent us. It parks on the list's wait channel when the pool is
// empty.
func (memR *Reactor) broadcastTxRoutine(peer p2p.Peer) {
	peerID := memR.ids.GetForPeer(peer)
	var next *clist.CElement

	for {
		if !memR.IsRunning() || !peer.IsRunning() {
			return
		}

		if next == nil {
			select {
			case <-memR.mempool.TxsWaitChan():
				if next = memR.mempool.TxsFront(); next == nil {
					continue
				}
			case <-peer.Quit():
				return
			case <-memR.Quit():
				return
			}
		}

		memTx := next.Value.(*mempoolTx)

		if _, ok := memTx.senders.Load(peerID); !ok {
			if success := peer.Send(MempoolChannel, memTx.tx); !success {
				time.Sleep(peerCatchupSleepIntervalMS * time.Millisecond)
				continue
			}
		}

		select {
		// NextWaitChan unblocks once the element has a successor (or is
		// removed), letting the walk continue in list order.
		case <-next.NextWaitChan():
			next = next.Next()
		case <-peer.Quit():
			return
		case <-memR.Quit():
			return
		}
	}
}
