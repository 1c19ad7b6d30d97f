package consensus

import (
	"fmt"
	"time"

	"github.com/tendermint/tendermint/libs/cmap"
	"github.com/tendermint/tendermint/libs/events"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/p2p"

	"permachain/types"
)

const (
	// StateChannel carries statuses, DataChannel proposes and the catch-up
	// responses, VoteChannel prevotes and precommits, RequestChannel the
	// request messages.
	StateChannel   = byte(0x30)
	DataChannel    = byte(0x31)
	VoteChannel    = byte(0x32)
	RequestChannel = byte(0x33)

	maxMsgSize = 1048576 // 1MB

	// maxTxsResponseBytes leaves envelope headroom under maxMsgSize when
	// splitting transaction responses.
	maxTxsResponseBytes = maxMsgSize - 65536

	statusBroadcastInterval = 10 * time.Second
)

// wireMessage is the envelope every consensus channel carries; the concrete
// payload type travels as a tmjson type tag.
type wireMessage struct {
	Msg Message `json:"msg"`
}

func encodeMsg(msg Message) ([]byte, error) {
	return tmjson.Marshal(wireMessage{Msg: msg})
}

func decodeMsg(bz []byte) (Message, error) {
	var wm wireMessage
	if err := tmjson.Unmarshal(bz, &wm); err != nil {
		return nil, err
	}
	if wm.Msg == nil {
		return nil, fmt.Errorf("empty consensus envelope")
	}
	return wm.Msg, nil
}

// channelFor maps a payload to the channel it travels on.
func channelFor(msg Message) byte {
	switch msg.(type) {
	case *types.Status:
		return StateChannel
	case *types.Prevote, *types.Precommit:
		return VoteChannel
	case *types.ProposeRequest, *types.TransactionsRequest,
		*types.PrevotesRequest, *types.BlockRequest, *types.PoolTransactionsRequest:
		return RequestChannel
	default:
		return DataChannel
	}
}

// Reactor gossips consensus messages between the local state machine and the
// switch. Broadcast flows ride the state machine's event switch; targeted
// replies go to the peer recorded for the destination validator, falling back
// to a broadcast when the route is unknown.
type Reactor struct {
	p2p.BaseReactor

	consensus *ConsensusState
	peers     *cmap.CMap
}

func NewReactor(consensus *ConsensusState) *Reactor {
	conR := &Reactor{
		consensus: consensus,
		peers:     cmap.NewCMap(),
	}
	conR.BaseReactor = *p2p.NewBaseReactor("Consensus", conR)
	return conR
}

func (conR *Reactor) OnStart() error {
	conR.subscribeToBroadcastEvents()

	if err := conR.consensus.Start(); err != nil {
		return err
	}

	go conR.statusRoutine()
	return nil
}

func (conR *Reactor) OnStop() {
	if err := conR.consensus.Stop(); err != nil {
		conR.Logger.Error("failed trying to stop consensus state", "error", err)
	}
}

// GetChannels implements Reactor
func (conR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  StateChannel,
			Priority:            6,
			SendQueueCapacity:   100,
			RecvMessageCapacity: maxMsgSize,
		},
		{
			ID:                  DataChannel,
			Priority:            10,
			SendQueueCapacity:   100,
			RecvBufferCapacity:  50 * 4096,
			RecvMessageCapacity: maxMsgSize,
		},
		{
			ID:                  VoteChannel,
			Priority:            7,
			SendQueueCapacity:   100,
			RecvBufferCapacity:  100 * 100,
			RecvMessageCapacity: maxMsgSize,
		},
		{
			ID:                  RequestChannel,
			Priority:            5,
			SendQueueCapacity:   100,
			RecvMessageCapacity: maxMsgSize,
		},
	}
}

// AddPeer implements Reactor
func (conR *Reactor) AddPeer(peer p2p.Peer) {
	conR.peers.Set(string(peer.ID()), peer)
}

// RemovePeer implements Reactor
func (conR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	conR.peers.Delete(string(peer.ID()))
}

// Receive implements Reactor. Every channel carries the same envelope; the
// payload is validated and dispatched by the state machine, never here.
func (conR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	if !conR.IsRunning() {
		return
	}

	msg, err := decodeMsg(msgBytes)
	if err != nil {
		conR.Logger.Error("error decoding message", "src", src, "chId", chID, "err", err)
		conR.Switch.StopPeerForError(src, err)
		return
	}

	conR.Logger.Debug("received message", "msg", msg, "src", src.ID(), "chId", chID)
	conR.consensus.peerMsgQueue <- msgInfo{Msg: msg, PeerID: src.ID()}
}

// subscribeToBroadcastEvents wires the state machine's outbound events to the
// switch. The state machine has already validated everything it emits.
func (conR *Reactor) subscribeToBroadcastEvents() {
	const subscriber = "consensus-reactor"

	conR.consensus.eventSwitch.AddListenerForEvent(subscriber, EventNewPropose, func(data events.EventData) {
		conR.broadcast(data.(*types.Propose))
	})
	conR.consensus.eventSwitch.AddListenerForEvent(subscriber, EventNewVote, func(data events.EventData) {
		conR.broadcast(data.(Message))
	})
	conR.consensus.eventSwitch.AddListenerForEvent(subscriber, EventNewStatus, func(data events.EventData) {
		conR.broadcast(data.(*types.Status))
	})
	conR.consensus.eventSwitch.AddListenerForEvent(subscriber, EventSendTo, func(data events.EventData) {
		conR.sendTo(data.(*sendToEvent))
	})
}

func (conR *Reactor) broadcast(msg Message) {
	bz, err := encodeMsg(msg)
	if err != nil {
		conR.Logger.Error("marshal broadcast message failed", "msg", msg, "err", err)
		return
	}
	conR.Switch.Broadcast(channelFor(msg), bz)
}

func (conR *Reactor) sendTo(ev *sendToEvent) {
	bz, err := encodeMsg(ev.Msg)
	if err != nil {
		conR.Logger.Error("marshal targeted message failed", "msg", ev.Msg, "err", err)
		return
	}

	if ev.PeerID != "" {
		if peer, ok := conR.peers.Get(string(ev.PeerID)).(p2p.Peer); ok && peer != nil {
			if peer.Send(channelFor(ev.Msg), bz) {
				return
			}
		}
	}
	// route unknown or send failed; every correct node ignores messages
	// addressed to someone else
	conR.Switch.Broadcast(channelFor(ev.Msg), bz)
}

// statusRoutine periodically re-announces our chain head, so peers that
// joined after the last commit still learn where the chain is.
func (conR *Reactor) statusRoutine() {
	ticker := time.NewTicker(statusBroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conR.consensus.BroadcastStatus()
		case <-conR.Quit():
			return
		}
	}
}
