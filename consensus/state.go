package consensus

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	cfg "github.com/tendermint/tendermint/config"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	tmtime "github.com/tendermint/tendermint/types/time"

	cstype "permachain/consensus/types"
	"permachain/mempool"
	"permachain/state"
	"permachain/store"
	"permachain/types"
)

// Events fired towards the reactor. NewPropose/NewVote/NewStatus are
// broadcast; SendTo is a targeted reply for the request protocol.
const (
	EventNewPropose = "NewPropose"
	EventNewVote    = "NewVote"
	EventNewStatus  = "NewStatus"
	EventSendTo     = "SendTo"
)

// Message is the closed set of payloads the consensus loop consumes: the
// signed protocol messages plus the request/response variants.
type Message interface {
	ValidateBasic() error
}

// msgInfo carries a decoded message and the peer it came from ("" for
// internally generated messages).
type msgInfo struct {
	Msg    Message
	PeerID p2p.ID
}

// sendToEvent asks the reactor to deliver a message to one peer.
type sendToEvent struct {
	Dest   int32  // destination validator index, for the address book
	PeerID p2p.ID // preferred transport address, may be empty
	Msg    Message
}

// ConsensusState is the protocol state machine. All mutation happens on a
// single event-processing path: network messages, internal messages and
// fired timeouts are drained by receiveRoutine and run to completion one at
// a time under mtx.
type ConsensusState struct {
	service.BaseService

	config *cfg.ConsensusConfig

	privVal    types.PrivValidator
	blockExec  state.BlockExecutor
	blockStore store.Store
	mempool    mempool.Mempool

	mtx sync.Mutex
	cstype.RoundState
	state state.State // chain head after the last commit

	// valPeers remembers which transport peer last spoke for a validator
	// index, so requests can be answered to the right connection.
	valPeers map[int32]p2p.ID

	peerMsgQueue     chan msgInfo
	internalMsgQueue chan msgInfo
	ticker           RoundTicker
	eventSwitch      events.EventSwitch

	metric *consensusMetric
}

type ConsensusOption func(*ConsensusState)

func NewDefaultConsensusState(
	config *cfg.ConsensusConfig,
	privVal types.PrivValidator,
	blockExec state.BlockExecutor,
	blockStore store.Store,
	mem mempool.Mempool,
	st state.State,
) *ConsensusState {
	return NewConsensusState(
		config,
		blockExec,
		blockStore,
		mem,
		st,
		SetPrivValidator(privVal),
	)
}

func NewConsensusState(
	config *cfg.ConsensusConfig,
	blockExec state.BlockExecutor,
	blockStore store.Store,
	mem mempool.Mempool,
	st state.State,
	options ...ConsensusOption,
) *ConsensusState {
	cs := &ConsensusState{
		config:           config,
		blockExec:        blockExec,
		blockStore:       blockStore,
		mempool:          mem,
		state:            st,
		RoundState:       *cstype.NewRoundState(st.NextHeight(), st.Validators, -1, st.LastBlockHash),
		valPeers:         make(map[int32]p2p.ID),
		peerMsgQueue:     make(chan msgInfo, msgQueueSize),
		internalMsgQueue: make(chan msgInfo, msgQueueSize),
		ticker:           NewRoundTicker(),
		eventSwitch:      events.NewEventSwitch(),
		metric:           newConsensusMetric(),
	}

	cs.BaseService = *service.NewBaseService(nil, "CONSENSUS", cs)

	for _, opt := range options {
		opt(cs)
	}

	return cs
}

const msgQueueSize = 1000

func SetPrivValidator(privVal types.PrivValidator) ConsensusOption {
	return func(cs *ConsensusState) {
		cs.privVal = privVal
		if cs.Validators != nil && privVal != nil {
			pub, err := privVal.GetPubKey()
			if err == nil {
				cs.ValIndex, _ = cs.Validators.GetByAddress(pub.Address())
			}
		}
	}
}

// SetTicker replaces the round ticker; tests use it to drive timeouts by
// hand.
func SetTicker(ticker RoundTicker) ConsensusOption {
	return func(cs *ConsensusState) {
		cs.ticker = ticker
	}
}

// String picks the round summary over the embedded BaseService stringer.
func (cs *ConsensusState) String() string {
	return cs.RoundState.String()
}

func (cs *ConsensusState) SetLogger(logger log.Logger) {
	cs.Logger = logger
	if cs.ticker != nil {
		cs.ticker.SetLogger(logger)
	}
}

func (cs *ConsensusState) OnStart() error {
	if err := cs.eventSwitch.Start(); err != nil {
		return err
	}
	if err := cs.ticker.Start(); err != nil {
		return err
	}

	go cs.receiveRoutine()

	cs.mtx.Lock()
	cs.enterNewRound(cs.Height, cs.Round)
	cs.requestPoolTransactions()
	cs.mtx.Unlock()

	cs.Logger.Info("consensus started", "height", cs.Height, "validator", cs.ValIndex)
	return nil
}

func (cs *ConsensusState) OnStop() {
	if err := cs.eventSwitch.Stop(); err != nil {
		cs.Logger.Error("failed trying to stop eventSwitch", "error", err)
	}
	if err := cs.ticker.Stop(); err != nil {
		cs.Logger.Error("failed trying to stop roundTicker", "error", err)
	}
	cs.Logger.Info("consensus stopped.")
}

// receiveRoutine drains the message queues and the timeout channel. It is
// the only writer of RoundState.
func (cs *ConsensusState) receiveRoutine() {
	for {
		select {
		case <-cs.Quit():
			return

		case mi := <-cs.peerMsgQueue:
			cs.handleMsg(mi)

		case mi := <-cs.internalMsgQueue:
			cs.handleMsg(mi)

		case ti := <-cs.ticker.Chan():
			cs.handleRoundTimeout(ti)
		}
	}
}

// handleMsg dispatches one message. Peer-originated failures are logged and
// dropped; they never propagate.
func (cs *ConsensusState) handleMsg(mi msgInfo) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	if err := mi.Msg.ValidateBasic(); err != nil {
		cs.Logger.Debug("dropping malformed message", "err", err, "peer", mi.PeerID)
		return
	}

	switch msg := mi.Msg.(type) {
	case *types.Propose:
		cs.rememberPeer(msg.Validator, mi.PeerID)
		cs.handlePropose(msg, mi.PeerID)
	case *types.Prevote:
		cs.rememberPeer(msg.Validator, mi.PeerID)
		cs.handlePrevote(msg, mi.PeerID)
	case *types.Precommit:
		cs.rememberPeer(msg.Validator, mi.PeerID)
		cs.handlePrecommit(msg, mi.PeerID)
	case *types.Status:
		cs.rememberPeer(msg.Validator, mi.PeerID)
		cs.handleStatus(msg, mi.PeerID)

	case *types.ProposeRequest:
		cs.rememberPeer(msg.From, mi.PeerID)
		cs.handleProposeRequest(msg, mi.PeerID)
	case *types.TransactionsRequest:
		cs.rememberPeer(msg.From, mi.PeerID)
		cs.handleTransactionsRequest(msg, mi.PeerID)
	case *types.TransactionsResponse:
		cs.handleTransactionsResponse(msg, mi.PeerID)
	case *types.PrevotesRequest:
		cs.rememberPeer(msg.From, mi.PeerID)
		cs.handlePrevotesRequest(msg, mi.PeerID)
	case *types.BlockRequest:
		cs.rememberPeer(msg.From, mi.PeerID)
		cs.handleBlockRequest(msg, mi.PeerID)
	case *types.PoolTransactionsRequest:
		cs.rememberPeer(msg.From, mi.PeerID)
		cs.handlePoolTransactionsRequest(msg, mi.PeerID)
	case *types.BlockResponse:
		cs.handleBlockResponse(msg, mi.PeerID)

	default:
		cs.Logger.Error("unknown message type", "type", fmt.Sprintf("%T", msg))
	}
}

func (cs *ConsensusState) rememberPeer(valIndex int32, peerID p2p.ID) {
	if peerID != "" && valIndex >= 0 {
		cs.valPeers[valIndex] = peerID
	}
}

//-----------------------------------------------------------------------------
// propose path

func (cs *ConsensusState) handlePropose(propose *types.Propose, peerID p2p.ID) {
	if propose.Height != cs.Height {
		cs.Logger.Debug("propose for another height", "got", propose.Height, "current", cs.Height)
		return
	}
	if propose.Round > cs.Round {
		cs.Queue(propose)
		return
	}
	if propose.Round < cs.Round {
		cs.Logger.Debug("propose for a past round", "got", propose.Round, "current", cs.Round)
		return
	}

	expected := cs.Validators.LeaderIndex(propose.Height, propose.Round)
	if propose.Validator != expected {
		cs.Logger.Info("propose from unexpected leader",
			"got", propose.Validator, "expected", expected, "round", propose.Round)
		return
	}
	if !cs.verifyPropose(propose) {
		cs.Logger.Info("propose with bad signature", "validator", propose.Validator)
		return
	}
	if !bytes.Equal(propose.PrevHash, cs.LastHash) {
		cs.Logger.Info("propose does not extend our chain head",
			"got", propose.PrevHash, "head", cs.LastHash)
		return
	}

	ps, exists := cs.AddPropose(propose, cs.mempool.HasTx)
	if exists {
		return
	}

	cs.Logger.Info("received propose", "propose", propose)
	cs.metric.MarkProposeReceived(propose.Hash())
	cs.eventSwitch.FireEvent(EventNewPropose, propose)

	if ps.HasUnknownTxs() {
		cs.requestTransactions(ps, peerID)
		return
	}
	cs.handleFullPropose(ps)
}

// handleFullPropose runs once a propose and all its transactions are known
// locally. It settles everything that was blocked on the missing data:
// pending commits, prevotes for every round since the propose's, and any
// prevote quorum that already formed.
func (cs *ConsensusState) handleFullPropose(ps *cstype.ProposeState) {
	if conf := cs.Confirmation(ps.Hash()); conf != nil {
		cs.commitConfirmed(ps, conf)
		return
	}

	for round := ps.Round(); round <= cs.Round; round++ {
		cs.maybePrevote(round, ps)
	}
	for round := ps.Round(); round <= cs.Round; round++ {
		if cs.HasMajorityPrevotes(round, ps.Hash()) {
			cs.handleMajorityPrevotes(round, ps)
		}
	}
}

// maybePrevote signs and sends our prevote for (round, propose) unless we
// already voted in the round or hold a lock on a different propose.
func (cs *ConsensusState) maybePrevote(round types.Round, ps *cstype.ProposeState) {
	if !cs.IsValidator() || cs.privVal == nil {
		return
	}
	if cs.WeHavePrevoted(round, nil) {
		return
	}
	if cs.IsLocked() && !bytes.Equal(cs.LockedPropose, ps.Hash()) {
		return
	}

	prevote := types.NewPrevote(cs.ValIndex, cs.Height, round, ps.Hash(), cs.LockedRound)
	if err := cs.privVal.SignPrevote(cs.state.ChainID, prevote); err != nil {
		cs.Logger.Error("sign prevote failed", "err", err)
		return
	}
	cs.sendInternalMessage(msgInfo{prevote, ""})
}

//-----------------------------------------------------------------------------
// prevote path

func (cs *ConsensusState) handlePrevote(vote *types.Prevote, peerID p2p.ID) {
	if vote.Height != cs.Height {
		cs.Logger.Debug("prevote for another height", "got", vote.Height, "current", cs.Height)
		return
	}
	if vote.Round > cs.Round {
		cs.Queue(vote)
		return
	}
	if !cs.verifyVote(vote.Validator, vote.SignBytes(cs.state.ChainID), vote.Signature) {
		cs.Logger.Info("prevote with bad signature", "validator", vote.Validator)
		return
	}

	added, set := cs.AddPrevote(vote)
	if !added {
		return
	}

	cs.Logger.Debug("added prevote", "vote", vote, "count", set.Count())
	cs.eventSwitch.FireEvent(EventNewVote, Message(vote))

	if !cs.HasPropose(vote.ProposeHash) {
		cs.requestPropose(vote.ProposeHash, vote.Validator, peerID)
	}
	// The voter justifies a lock we have no evidence for: fetch the
	// prevotes of that earlier round.
	if vote.LockedRound != types.RoundNone && cs.Votes.Prevotes(vote.LockedRound, vote.ProposeHash) == nil {
		cs.requestPrevotes(vote.LockedRound, vote.ProposeHash, vote.Validator, peerID)
	}

	if set.HasQuorum(cs.Quorum()) {
		if ps := cs.GetPropose(vote.ProposeHash); ps != nil && !ps.HasUnknownTxs() {
			cs.handleMajorityPrevotes(vote.Round, ps)
		}
		// otherwise handleFullPropose re-checks once the data arrives
	}
}

// handleMajorityPrevotes locks on the propose and precommits, provided the
// lock only moves forward.
func (cs *ConsensusState) handleMajorityPrevotes(round types.Round, ps *cstype.ProposeState) {
	if cs.LockedRound >= round {
		return
	}
	if err := cs.Lock(round, ps.Hash()); err != nil {
		cs.Logger.Error("lock refused", "err", err)
		return
	}
	cs.Step = cstype.RoundStepPrecommit
	cs.metric.MarkLocked(round)
	cs.Logger.Info("locked on propose", "round", round, "propose", ps.Hash())

	// carry our prevote for the locked propose into every round we have
	// already entered
	for r := round + 1; r <= cs.Round; r++ {
		cs.maybePrevote(r, ps)
	}

	block := cs.executePropose(ps)
	if block == nil {
		return
	}

	if cs.IsValidator() && cs.privVal != nil && !cs.WeHavePrecommitted(round, nil) {
		precommit := types.NewPrecommit(cs.ValIndex, cs.Height, round, ps.Hash(), block.Hash(), tmtime.Now())
		if err := cs.privVal.SignPrecommit(cs.state.ChainID, precommit); err != nil {
			cs.Logger.Error("sign precommit failed", "err", err)
			return
		}
		cs.sendInternalMessage(msgInfo{precommit, ""})
	}
}

//-----------------------------------------------------------------------------
// precommit path

func (cs *ConsensusState) handlePrecommit(vote *types.Precommit, peerID p2p.ID) {
	if vote.Height != cs.Height {
		cs.Logger.Debug("precommit for another height", "got", vote.Height, "current", cs.Height)
		return
	}
	if vote.Round > cs.Round {
		cs.Queue(vote)
		return
	}
	if !cs.verifyVote(vote.Validator, vote.SignBytes(cs.state.ChainID), vote.Signature) {
		cs.Logger.Info("precommit with bad signature", "validator", vote.Validator)
		return
	}

	added, set := cs.AddPrecommit(vote)
	if !added {
		return
	}

	cs.Logger.Debug("added precommit", "vote", vote, "count", set.Count())
	cs.eventSwitch.FireEvent(EventNewVote, Message(vote))

	if !cs.HasPropose(vote.ProposeHash) {
		cs.requestPropose(vote.ProposeHash, vote.Validator, peerID)
	}

	if set.HasQuorum(cs.Quorum()) {
		cs.handleMajorityPrecommits(vote.Round, vote.ProposeHash, vote.BlockHash)
	}
}

// handleMajorityPrecommits commits the block named by a precommit quorum. If
// the propose (or its transactions) has not arrived yet, the quorum is
// remembered and the commit happens the moment the data is complete —
// delivery order must not matter.
func (cs *ConsensusState) handleMajorityPrecommits(round types.Round, proposeHash, blockHash tmbytes.HexBytes) {
	ps := cs.GetPropose(proposeHash)
	if ps == nil || ps.HasUnknownTxs() {
		cs.Confirm(proposeHash, round, blockHash)
		if ps == nil {
			cs.requestPropose(proposeHash, -1, "")
		} else {
			cs.requestTransactions(ps, "")
		}
		return
	}

	block := cs.executePropose(ps)
	if block == nil {
		return
	}
	if !bytes.Equal(block.Hash(), blockHash) {
		// A quorum disagrees with our deterministic execution; our state
		// diverged and committing would violate safety.
		cs.Logger.Error("precommit quorum names a block we cannot reproduce",
			"quorum", blockHash, "executed", block.Hash())
		return
	}
	cs.commitBlock(ps, block, round)
}

// commitConfirmed commits a propose whose precommit quorum was observed
// before the propose itself was complete.
func (cs *ConsensusState) commitConfirmed(ps *cstype.ProposeState, conf *cstype.Confirmation) {
	block := cs.executePropose(ps)
	if block == nil {
		return
	}
	if !bytes.Equal(block.Hash(), conf.BlockHash) {
		cs.Logger.Error("confirmed propose executes to an unexpected block",
			"confirmed", conf.BlockHash, "executed", block.Hash())
		return
	}
	cs.commitBlock(ps, block, conf.Round)
}

//-----------------------------------------------------------------------------
// commit

// executePropose applies the propose to the chain head and caches the
// candidate block. Execution is deterministic; repeating it is safe.
func (cs *ConsensusState) executePropose(ps *cstype.ProposeState) *types.Block {
	if ps.Executed() {
		return cs.GetBlock(ps.BlockHash())
	}

	txs := make(types.Txs, 0, len(ps.Propose().TxHashes))
	for _, hash := range ps.Propose().TxHashes {
		tx := cs.mempool.GetTx(types.TxKeyFromHash(hash))
		if tx == nil {
			cs.Logger.Error("propose marked complete but tx is missing", "tx", hash)
			return nil
		}
		txs = append(txs, tx)
	}

	block, err := cs.blockExec.ExecutePropose(cs.state, ps.Propose(), txs, tmtime.Now())
	if err != nil {
		cs.Logger.Error("execute propose failed", "propose", ps.Propose(), "err", err)
		return nil
	}
	ps.SetBlockHash(block.Hash())
	cs.AddBlock(block)
	return block
}

// commitBlock merges the block into the store, attaches the precommit proof,
// resets the round state for the next height and announces the new head. A
// storage merge failure is unrecoverable: the node halts rather than
// continue past a hole in the chain.
func (cs *ConsensusState) commitBlock(ps *cstype.ProposeState, block *types.Block, round types.Round) {
	cs.Step = cstype.RoundStepCommit

	var precommits []*types.Precommit
	if set := cs.Votes.Precommits(round, ps.Hash(), block.Hash()); set != nil {
		for _, v := range set.Votes() {
			precommits = append(precommits, v.(*types.Precommit))
		}
	}
	block.Commit = types.NewCommit(cs.Height, round, ps.Hash(), block.Hash(), precommits)

	newState, err := cs.blockExec.CommitBlock(cs.state, block)
	if err != nil {
		tmos.Exit(fmt.Sprintf("commit at height %v failed: %v", cs.Height, err))
		return
	}
	cs.state = newState

	cs.Logger.Info("committed block",
		"height", block.Height, "round", round, "txs", block.NumTxs, "hash", block.Hash())
	cs.metric.MarkCommitted(block.Height, block.Hash())

	cs.NewHeight(block.Hash())
	cs.broadcastStatus()
	cs.enterNewRound(cs.Height, types.InitialRound)
}

// broadcastStatus announces our chain head so lagging peers can catch up.
func (cs *ConsensusState) broadcastStatus() {
	if !cs.IsValidator() || cs.privVal == nil {
		return
	}
	status := types.NewStatus(cs.ValIndex, cs.state.LastBlockHeight, cs.state.LastBlockHash, int64(cs.mempool.Size()))
	if err := cs.privVal.SignStatus(cs.state.ChainID, status); err != nil {
		cs.Logger.Error("sign status failed", "err", err)
		return
	}
	cs.eventSwitch.FireEvent(EventNewStatus, status)
}

// BroadcastStatus signs and fires a fresh status announcement. The reactor
// calls it on a timer; commits trigger it directly.
func (cs *ConsensusState) BroadcastStatus() {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	cs.broadcastStatus()
}

func (cs *ConsensusState) handleStatus(status *types.Status, peerID p2p.ID) {
	_, val := cs.Validators.GetByIndex(status.Validator)
	if val == nil || !val.PubKey.VerifySignature(status.SignBytes(cs.state.ChainID), status.Signature) {
		cs.Logger.Info("status with bad signature", "validator", status.Validator)
		return
	}

	// the peer already committed the height we are still deciding
	if status.Height >= cs.Height {
		cs.requestBlock(cs.Height, status.Validator, peerID)
	}
}

//-----------------------------------------------------------------------------
// rounds

func (cs *ConsensusState) handleRoundTimeout(ti timeoutInfo) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	if ti.Height != cs.Height || ti.Round != cs.Round {
		cs.Logger.Debug("stale round timeout", "timeout", ti, "height", cs.Height, "round", cs.Round)
		return
	}

	cs.Logger.Info("round timed out", "height", cs.Height, "round", cs.Round)
	cs.AdvanceRound()
	cs.metric.MarkRound(cs.Round)
	cs.enterNewRound(cs.Height, cs.Round)
}

// enterNewRound arms the round timeout, replays queued messages that became
// current and, if we lead the round, builds and sends our propose. Caller
// holds mtx.
func (cs *ConsensusState) enterNewRound(height types.Height, round types.Round) {
	cs.Step = cstype.RoundStepPropose
	cs.metric.MarkRound(round)
	cs.scheduleRoundTimeout(height, round)

	cs.replayQueued()

	if cs.IsLeader(round) && cs.privVal != nil {
		cs.decidePropose(height, round)
	}
}

func (cs *ConsensusState) scheduleRoundTimeout(height types.Height, round types.Round) {
	duration := cs.config.TimeoutPropose +
		cs.config.TimeoutProposeDelta*time.Duration(round.Int32()-1)
	cs.ticker.ScheduleTimeout(timeoutInfo{Duration: duration, Height: height, Round: round})
}

// replayQueued re-injects queued future-round messages that the round
// advance made current; the rest go back in the queue.
func (cs *ConsensusState) replayQueued() {
	for _, msg := range cs.PopQueued() {
		round := queuedRound(msg)
		if round > cs.Round {
			cs.Queue(msg)
			continue
		}
		cs.sendInternalMessage(msgInfo{msg.(Message), ""})
	}
}

func queuedRound(msg types.ConsensusMessage) types.Round {
	switch m := msg.(type) {
	case *types.Propose:
		return m.Round
	case *types.Prevote:
		return m.Round
	case *types.Precommit:
		return m.Round
	default:
		return types.RoundNone
	}
}

// decidePropose builds a propose from the current pool snapshot (a
// skip-propose when the pool is empty), signs it and feeds it through the
// regular handling path.
func (cs *ConsensusState) decidePropose(height types.Height, round types.Round) {
	propose := cs.blockExec.CreatePropose(cs.state, height, round, cs.ValIndex)
	if err := cs.privVal.SignPropose(cs.state.ChainID, propose); err != nil {
		cs.Logger.Error("sign propose failed", "err", err)
		return
	}

	cs.Logger.Info("proposing", "propose", propose, "skip", propose.IsSkip())
	cs.metric.MarkProposer(true)
	cs.sendInternalMessage(msgInfo{propose, ""})
}

//-----------------------------------------------------------------------------
// signature helpers

func (cs *ConsensusState) verifyPropose(propose *types.Propose) bool {
	_, val := cs.Validators.GetByIndex(propose.Validator)
	if val == nil {
		return false
	}
	return val.PubKey.VerifySignature(propose.SignBytes(cs.state.ChainID), propose.Signature)
}

func (cs *ConsensusState) verifyVote(valIndex int32, signBytes, signature []byte) bool {
	_, val := cs.Validators.GetByIndex(valIndex)
	if val == nil {
		return false
	}
	return val.PubKey.VerifySignature(signBytes, signature)
}

//-----------------------------------------------------------------------------
// plumbing

// sendInternalMessage feeds an internally generated message into the event
// loop without ever blocking the caller.
func (cs *ConsensusState) sendInternalMessage(mi msgInfo) {
	select {
	case cs.internalMsgQueue <- mi:
	default:
		// NOTE: using the go-routine means our votes can
		// be processed out of order.
		cs.Logger.Debug("internal msg queue is full; using a go-routine")
		go func() { cs.internalMsgQueue <- mi }()
	}
}

// sendTo hands a targeted message to the reactor.
func (cs *ConsensusState) sendTo(dest int32, peerID p2p.ID, msg Message) {
	if peerID == "" {
		peerID = cs.valPeers[dest]
	}
	cs.eventSwitch.FireEvent(EventSendTo, &sendToEvent{Dest: dest, PeerID: peerID, Msg: msg})
}

//-----------------------------------------------------------------------------
// read-only accessors for rpc/diagnostics

type RoundStateSnapshot struct {
	Height      types.Height     `json:"height"`
	Round       types.Round      `json:"round"`
	Step        string           `json:"step"`
	LockedRound types.Round      `json:"locked_round"`
	LockedHash  tmbytes.HexBytes `json:"locked_hash"`
	Proposer    int32            `json:"proposer"`
	PoolSize    int              `json:"pool_size"`
}

func (cs *ConsensusState) Snapshot() RoundStateSnapshot {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return RoundStateSnapshot{
		Height:      cs.Height,
		Round:       cs.Round,
		Step:        cs.Step.String(),
		LockedRound: cs.LockedRound,
		LockedHash:  cs.LockedPropose,
		Proposer:    cs.LeaderIndex(cs.Round),
		PoolSize:    cs.mempool.Size(),
	}
}

// CommittedHeight returns the height of the last committed block.
func (cs *ConsensusState) CommittedHeight() types.Height {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return cs.state.LastBlockHeight
}

// JSONString implements metric.MetricItem.
func (cs *ConsensusState) JSONString() string {
	return cs.metric.JSONString()
}
