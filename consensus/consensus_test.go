package consensus

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	tmtime "github.com/tendermint/tendermint/types/time"

	"permachain/mempool"
	mempoolmock "permachain/mempool/mock"
	bkstate "permachain/state"
	"permachain/store"
	"permachain/types"
)

const testChainID = "consensus_test"

// mockTicker records scheduled timeouts instead of arming timers, so tests
// drive round transitions by hand.
type mockTicker struct {
	c         chan timeoutInfo
	scheduled []timeoutInfo
}

func newMockTicker() *mockTicker { return &mockTicker{c: make(chan timeoutInfo, 10)} }

func (m *mockTicker) Start() error                   { return nil }
func (m *mockTicker) Stop() error                    { return nil }
func (m *mockTicker) Chan() <-chan timeoutInfo       { return m.c }
func (m *mockTicker) ScheduleTimeout(ti timeoutInfo) { m.scheduled = append(m.scheduled, ti) }
func (m *mockTicker) SetLogger(logger log.Logger)    {}

// testHarness holds one fixed 4-validator chain setup; nodes built from it
// share the genesis and can verify each other's signatures.
type testHarness struct {
	config   *cfg.Config
	genDoc   *types.GenesisDoc
	vals     *types.ValidatorSet
	privVals []types.PrivValidator
}

func newTestHarness(t *testing.T) (*testHarness, func()) {
	t.Helper()

	vals, privVals := types.RandValidatorSet(4)
	genDoc := &types.GenesisDoc{ChainID: testChainID, GenesisTime: tmtime.Now()}
	vals.Iterate(func(_ int, val *types.Validator) bool {
		genDoc.Validators = append(genDoc.Validators, types.GenesisValidator{
			Address: val.Address,
			PubKey:  val.PubKey,
		})
		return false
	})

	config := cfg.ResetTestRoot("consensus_test")
	h := &testHarness{config: config, genDoc: genDoc, vals: vals, privVals: privVals}
	return h, func() { os.RemoveAll(config.RootDir) }
}

// newNode builds a consensus state for validator valIdx (-1 for an observer)
// with an in-memory store and a quiet logger.
func (h *testHarness) newNode(t *testing.T, valIdx int32) *ConsensusState {
	t.Helper()

	st, genesisBlock := bkstate.MakeGenesisState(h.genDoc)
	bs := store.NewMemStore(log.NewNopLogger())
	require.NoError(t, bs.SaveGenesisBlock(genesisBlock))

	mem := mempool.NewListMempool(h.config.Mempool, st.NextHeight())
	mem.SetLogger(log.NewNopLogger())

	exec := bkstate.NewBlockExecutor(bs, mem)

	opts := []ConsensusOption{SetTicker(newMockTicker())}
	if valIdx >= 0 {
		opts = append(opts, SetPrivValidator(h.privVals[valIdx]))
	}
	cs := NewConsensusState(h.config.Consensus, exec, bs, mem, st, opts...)
	cs.SetLogger(log.NewNopLogger())
	return cs
}

// startRound enters the first round without running the service goroutines;
// tests pump the message queues synchronously.
func startRound(cs *ConsensusState) {
	cs.mtx.Lock()
	cs.enterNewRound(cs.Height, cs.Round)
	cs.mtx.Unlock()
	drainInternal(cs)
}

func drainInternal(cs *ConsensusState) {
	for {
		select {
		case mi := <-cs.internalMsgQueue:
			cs.handleMsg(mi)
		default:
			return
		}
	}
}

func deliver(cs *ConsensusState, msgs ...Message) {
	for _, msg := range msgs {
		cs.handleMsg(msgInfo{Msg: msg, PeerID: ""})
		drainInternal(cs)
	}
}

//-----------------------------------------------------------------------------
// signed message builders

func (h *testHarness) makePropose(t *testing.T, valIdx int32, round types.Round, prevHash tmbytes.HexBytes, txs types.Txs) *types.Propose {
	t.Helper()
	var propose *types.Propose
	if len(txs) == 0 {
		propose = types.NewSkipPropose(valIdx, types.InitialHeight, round, prevHash)
	} else {
		propose = types.NewPropose(valIdx, types.InitialHeight, round, prevHash, txs.Hashes())
	}
	require.NoError(t, h.privVals[valIdx].SignPropose(testChainID, propose))
	return propose
}

func (h *testHarness) makePrevote(t *testing.T, valIdx int32, round types.Round, proposeHash tmbytes.HexBytes) *types.Prevote {
	t.Helper()
	vote := types.NewPrevote(valIdx, types.InitialHeight, round, proposeHash, types.RoundNone)
	require.NoError(t, h.privVals[valIdx].SignPrevote(testChainID, vote))
	return vote
}

func (h *testHarness) makePrecommit(t *testing.T, valIdx int32, round types.Round, proposeHash, blockHash tmbytes.HexBytes) *types.Precommit {
	t.Helper()
	vote := types.NewPrecommit(valIdx, types.InitialHeight, round, proposeHash, blockHash, tmtime.Now())
	require.NoError(t, h.privVals[valIdx].SignPrecommit(testChainID, vote))
	return vote
}

// executedBlockHash runs the propose through a scratch executor to learn the
// block hash honest voters will precommit.
func (h *testHarness) executedBlockHash(t *testing.T, propose *types.Propose, txs types.Txs) tmbytes.HexBytes {
	t.Helper()
	st, genesisBlock := bkstate.MakeGenesisState(h.genDoc)
	bs := store.NewMemStore(log.NewNopLogger())
	require.NoError(t, bs.SaveGenesisBlock(genesisBlock))
	exec := bkstate.NewBlockExecutor(bs, mempoolmock.Mempool{})
	block, err := exec.ExecutePropose(st, propose, txs, tmtime.Now())
	require.NoError(t, err)
	return block.Hash()
}

//-----------------------------------------------------------------------------

// The leader for (height 1, round 1) of a 4-validator chain is
// (1+1) mod 4 = validator 2.
const firstLeader = int32(2)

func TestCommitSkipBlock(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	blockHash := h.executedBlockHash(t, propose, nil)

	deliver(cs, propose)
	assert.True(t, cs.WeHavePrevoted(types.InitialRound, propose.Hash()))

	deliver(cs,
		h.makePrevote(t, 1, types.InitialRound, propose.Hash()),
		h.makePrevote(t, 2, types.InitialRound, propose.Hash()),
	)
	assert.EqualValues(t, types.InitialRound, cs.LockedRound)
	assert.True(t, cs.WeHavePrecommitted(types.InitialRound, propose.Hash()))

	deliver(cs,
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 2, types.InitialRound, propose.Hash(), blockHash),
	)

	assert.EqualValues(t, 2, cs.Height)
	assert.EqualValues(t, 1, cs.Round)
	assert.EqualValues(t, 1, cs.CommittedHeight())

	head := cs.blockStore.Head()
	require.NotNil(t, head)
	assert.True(t, head.IsSkip())
	assert.Equal(t, blockHash, head.Hash())
	require.NotNil(t, head.Commit)
	assert.NoError(t, head.Commit.Verify(testChainID, h.vals))

	// the skip block carries the genesis state hash forward
	assert.Equal(t, cs.blockStore.LoadBlock(0).StateHash, head.StateHash)
}

func TestCommitBlockWithTxs(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	txs := types.Txs{types.Tx("pay alice 5"), types.Tx("pay bob 3")}
	for _, tx := range txs {
		require.NoError(t, cs.mempool.CheckTx(tx, mempool.TxInfo{}))
	}
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, txs)
	blockHash := h.executedBlockHash(t, propose, txs)

	deliver(cs,
		propose,
		h.makePrevote(t, 1, types.InitialRound, propose.Hash()),
		h.makePrevote(t, 3, types.InitialRound, propose.Hash()),
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 3, types.InitialRound, propose.Hash(), blockHash),
	)

	assert.EqualValues(t, 2, cs.Height)
	head := cs.blockStore.Head()
	require.NotNil(t, head)
	assert.EqualValues(t, 2, head.NumTxs)
	assert.Equal(t, blockHash, head.Hash())
	assert.Zero(t, cs.mempool.Size(), "committed txs must leave the pool")
}

// TestOrderIndependence delivers the full message set of a height — the
// propose plus prevotes and precommits from the three other validators — in
// every possible order. Each order must end in the same commit.
func TestOrderIndependence(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	scratch := h.newNode(t, 0)
	propose := h.makePropose(t, firstLeader, types.InitialRound, scratch.state.LastBlockHash, nil)
	blockHash := h.executedBlockHash(t, propose, nil)

	msgs := []Message{
		propose,
		h.makePrevote(t, 1, types.InitialRound, propose.Hash()),
		h.makePrevote(t, 2, types.InitialRound, propose.Hash()),
		h.makePrevote(t, 3, types.InitialRound, propose.Hash()),
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 2, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 3, types.InitialRound, propose.Hash(), blockHash),
	}

	permute(len(msgs), func(order []int) {
		cs := h.newNode(t, 0)
		startRound(cs)
		for _, i := range order {
			deliver(cs, msgs[i])
		}

		require.EqualValues(t, 2, cs.Height, "order %v did not commit", order)
		require.EqualValues(t, 1, cs.Round)
		head := cs.blockStore.Head()
		require.NotNil(t, head)
		require.Equal(t, blockHash, head.Hash(), "order %v committed a different block", order)
	})
}

// permute runs fn with every permutation of [0..n). Heap's algorithm.
func permute(n int, fn func(order []int)) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			fn(order)
			return
		}
		for i := 0; i < k; i++ {
			generate(k - 1)
			if k%2 == 0 {
				order[i], order[k-1] = order[k-1], order[i]
			} else {
				order[0], order[k-1] = order[k-1], order[0]
			}
		}
	}
	generate(n)
}

// A precommit quorum can arrive before the propose it certifies; the commit
// must happen the moment the propose shows up.
func TestCommitBeforeProposeDelivery(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	blockHash := h.executedBlockHash(t, propose, nil)

	deliver(cs,
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 2, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 3, types.InitialRound, propose.Hash(), blockHash),
	)
	assert.EqualValues(t, 1, cs.Height, "no commit without the propose")
	require.NotNil(t, cs.Confirmation(propose.Hash()), "the quorum must be remembered")

	deliver(cs, propose)
	assert.EqualValues(t, 2, cs.Height)
	assert.Equal(t, blockHash, cs.blockStore.Head().Hash())
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	blockHash := h.executedBlockHash(t, propose, nil)
	pv1 := h.makePrevote(t, 1, types.InitialRound, propose.Hash())

	deliver(cs, propose, propose, pv1, pv1, pv1)

	set := cs.Votes.Prevotes(types.InitialRound, propose.Hash())
	require.NotNil(t, set)
	assert.Equal(t, 2, set.Count(), "own prevote plus validator 1, duplicates absorbed")
	assert.Len(t, cs.Proposes, 1)

	// redelivery after the commit is a no-op as well
	deliver(cs,
		h.makePrevote(t, 2, types.InitialRound, propose.Hash()),
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), blockHash),
		h.makePrecommit(t, 2, types.InitialRound, propose.Hash(), blockHash),
	)
	require.EqualValues(t, 2, cs.Height)
	deliver(cs, propose, pv1)
	assert.EqualValues(t, 2, cs.Height)
	assert.EqualValues(t, 1, cs.blockStore.Height())
}

// Once locked, a node refuses to prevote or precommit any other propose in
// the height, even when that propose gathers its own prevote quorum.
func TestLockRefusesConflictingPropose(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	tx := types.Tx("conflicting payload")
	require.NoError(t, cs.mempool.CheckTx(tx, mempool.TxInfo{}))
	startRound(cs)

	// the leader equivocates: two different proposes for the same round
	p1 := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	p2 := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, types.Txs{tx})
	require.NotEqual(t, p1.Hash(), p2.Hash())
	blockHash1 := h.executedBlockHash(t, p1, nil)

	deliver(cs, p1, p2)
	assert.True(t, cs.WeHavePrevoted(types.InitialRound, p1.Hash()))
	assert.False(t, cs.WeHavePrevoted(types.InitialRound, p2.Hash()))

	deliver(cs,
		h.makePrevote(t, 1, types.InitialRound, p1.Hash()),
		h.makePrevote(t, 3, types.InitialRound, p1.Hash()),
	)
	assert.Equal(t, p1.Hash(), cs.LockedPropose)
	assert.True(t, cs.WeHavePrecommitted(types.InitialRound, p1.Hash()))

	// a full foreign prevote quorum for p2 must not move the lock
	deliver(cs,
		h.makePrevote(t, 1, types.InitialRound, p2.Hash()),
		h.makePrevote(t, 2, types.InitialRound, p2.Hash()),
		h.makePrevote(t, 3, types.InitialRound, p2.Hash()),
	)
	assert.Equal(t, p1.Hash(), cs.LockedPropose)
	assert.False(t, cs.WeHavePrecommitted(types.InitialRound, p2.Hash()))

	deliver(cs,
		h.makePrecommit(t, 1, types.InitialRound, p1.Hash(), blockHash1),
		h.makePrecommit(t, 3, types.InitialRound, p1.Hash(), blockHash1),
	)
	require.EqualValues(t, 2, cs.Height)
	assert.Equal(t, blockHash1, cs.blockStore.Head().Hash())
}

func TestStaleTimeoutIsIgnored(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	deliver(cs, propose, h.makePrevote(t, 1, types.InitialRound, propose.Hash()))

	// a timeout armed for a round we already left does nothing
	cs.handleRoundTimeout(timeoutInfo{Height: 1, Round: 7})
	assert.EqualValues(t, 1, cs.Round)
	cs.handleRoundTimeout(timeoutInfo{Height: 5, Round: 1})
	assert.EqualValues(t, 1, cs.Round)

	// the current round's timeout advances the round and keeps the
	// accumulated proposes and votes
	cs.handleRoundTimeout(timeoutInfo{Height: 1, Round: 1})
	drainInternal(cs)
	assert.EqualValues(t, 2, cs.Round)
	assert.True(t, cs.HasPropose(propose.Hash()))
	assert.NotNil(t, cs.Votes.Prevotes(types.InitialRound, propose.Hash()))
}

// Messages from a future round are queued and replayed once that round
// starts; the commit then names the round the propose was made in.
func TestFutureRoundMessagesQueued(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	// leader for (height 1, round 2) is (1+2) mod 4 = validator 3
	round2 := types.Round(2)
	propose := h.makePropose(t, 3, round2, cs.state.LastBlockHash, nil)
	blockHash := h.executedBlockHash(t, propose, nil)

	deliver(cs, propose, h.makePrevote(t, 1, round2, propose.Hash()))
	assert.Equal(t, 2, cs.QueuedCount())
	assert.False(t, cs.HasPropose(propose.Hash()))

	cs.handleRoundTimeout(timeoutInfo{Height: 1, Round: 1})
	drainInternal(cs)
	assert.EqualValues(t, 2, cs.Round)
	assert.True(t, cs.HasPropose(propose.Hash()))
	assert.True(t, cs.WeHavePrevoted(round2, propose.Hash()))

	deliver(cs,
		h.makePrevote(t, 2, round2, propose.Hash()),
		h.makePrecommit(t, 1, round2, propose.Hash(), blockHash),
		h.makePrecommit(t, 2, round2, propose.Hash(), blockHash),
	)
	require.EqualValues(t, 2, cs.Height)
	assert.EqualValues(t, round2, cs.blockStore.Head().Round)
}

// The leader of the first round builds and sends its own propose; with an
// empty pool it proposes a skip block.
func TestLeaderProposes(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, firstLeader)
	startRound(cs)

	require.Len(t, cs.Proposes, 1)
	for _, ps := range cs.Proposes {
		assert.True(t, ps.Propose().IsSkip())
		assert.EqualValues(t, firstLeader, ps.Propose().Validator)
		assert.True(t, cs.WeHavePrevoted(types.InitialRound, ps.Hash()))
	}
}

// An invalid message never changes state: wrong leader, bad signature,
// broken chain linkage.
func TestInvalidProposesRejected(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	// wrong leader for the round
	wrongLeader := h.makePropose(t, 1, types.InitialRound, cs.state.LastBlockHash, nil)
	deliver(cs, wrongLeader)
	assert.False(t, cs.HasPropose(wrongLeader.Hash()))

	// signature from the wrong key
	forged := types.NewSkipPropose(firstLeader, types.InitialHeight, types.InitialRound, cs.state.LastBlockHash)
	require.NoError(t, h.privVals[1].SignPropose(testChainID, forged))
	deliver(cs, forged)
	assert.False(t, cs.HasPropose(forged.Hash()))

	// does not extend our chain head
	badParent := h.makePropose(t, firstLeader, types.InitialRound, tmbytes.HexBytes("0123456789abcdef0123456789abcdef"), nil)
	deliver(cs, badParent)
	assert.False(t, cs.HasPropose(badParent.Hash()))

	assert.Empty(t, cs.Proposes)
}

// A precommit quorum for a block our deterministic execution cannot
// reproduce must never commit.
func TestQuorumForWrongBlockHashRefused(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	startRound(cs)

	propose := h.makePropose(t, firstLeader, types.InitialRound, cs.state.LastBlockHash, nil)
	bogusHash := types.Tx("not the block").Hash()

	deliver(cs,
		propose,
		h.makePrecommit(t, 1, types.InitialRound, propose.Hash(), bogusHash),
		h.makePrecommit(t, 2, types.InitialRound, propose.Hash(), bogusHash),
		h.makePrecommit(t, 3, types.InitialRound, propose.Hash(), bogusHash),
	)
	assert.EqualValues(t, 1, cs.Height, "must not commit a block we cannot reproduce")
	assert.EqualValues(t, 0, cs.blockStore.Height())
}

// ConsensusState embeds both BaseService and RoundState; its String must be
// the round summary, and the service interface must stay satisfied.
func TestConsensusStateStringer(t *testing.T) {
	h, clean := newTestHarness(t)
	defer clean()

	cs := h.newNode(t, 0)
	var _ service.Service = cs
	startRound(cs)
	assert.Contains(t, cs.String(), "RoundState{H:1 R:1")
}
