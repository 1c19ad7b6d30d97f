package consensus

import (
	"bytes"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/p2p"

	cstype "permachain/consensus/types"
	"permachain/mempool"
	"permachain/store"
	"permachain/types"
)

// The catch-up protocol. A node that learns about data it does not hold (a
// propose named by a vote, tx bodies named by a propose, prevote evidence for
// a lock, a committed block) asks a peer that provably has it; the peer
// answers only from local state, resending the exact signed artifacts.
//
// Only validators issue requests: requests carry a From index so the
// responder can address the reply. An observer catches up through statuses
// and block responses alone.

//-----------------------------------------------------------------------------
// issuing requests

func (cs *ConsensusState) requestPropose(proposeHash tmbytes.HexBytes, dest int32, peerID p2p.ID) {
	if !cs.IsValidator() {
		return
	}
	if dest < 0 {
		dest = cs.LeaderIndex(cs.Round)
	}
	req := &types.ProposeRequest{
		From:        cs.ValIndex,
		To:          dest,
		Height:      cs.Height,
		ProposeHash: proposeHash,
	}
	cs.Logger.Debug("requesting propose", "req", req)
	cs.sendTo(dest, peerID, req)
}

func (cs *ConsensusState) requestTransactions(ps *cstype.ProposeState, peerID p2p.ID) {
	if !cs.IsValidator() {
		return
	}
	dest := ps.Propose().Validator
	req := &types.TransactionsRequest{
		From:     cs.ValIndex,
		To:       dest,
		TxHashes: ps.UnknownTxHashes(),
	}
	cs.Logger.Debug("requesting transactions", "req", req)
	cs.sendTo(dest, peerID, req)
}

func (cs *ConsensusState) requestPrevotes(round types.Round, proposeHash tmbytes.HexBytes, dest int32, peerID p2p.ID) {
	if !cs.IsValidator() {
		return
	}
	req := &types.PrevotesRequest{
		From:        cs.ValIndex,
		To:          dest,
		Height:      cs.Height,
		Round:       round,
		ProposeHash: proposeHash,
		HasVoted:    cs.Votes.KnownPrevotes(round, proposeHash),
	}
	cs.Logger.Debug("requesting prevotes", "req", req)
	cs.sendTo(dest, peerID, req)
}

func (cs *ConsensusState) requestBlock(height types.Height, dest int32, peerID p2p.ID) {
	if !cs.IsValidator() {
		return
	}
	req := &types.BlockRequest{
		From:   cs.ValIndex,
		To:     dest,
		Height: height,
	}
	cs.Logger.Debug("requesting block", "req", req)
	cs.sendTo(dest, peerID, req)
}

// requestPoolTransactions asks a peer to replay its transaction pool.
// Issued once at startup so a validator that was down catches the txs the
// others gossiped while it was away.
func (cs *ConsensusState) requestPoolTransactions() {
	if !cs.IsValidator() || cs.Validators.Size() < 2 {
		return
	}
	dest := cs.LeaderIndex(cs.Round)
	if dest == cs.ValIndex {
		dest = (dest + 1) % int32(cs.Validators.Size())
	}
	req := &types.PoolTransactionsRequest{From: cs.ValIndex, To: dest}
	cs.Logger.Debug("requesting pool transactions", "req", req)
	cs.sendTo(dest, "", req)
}

//-----------------------------------------------------------------------------
// answering requests

func (cs *ConsensusState) handleProposeRequest(req *types.ProposeRequest, peerID p2p.ID) {
	if req.To != cs.ValIndex || req.Height != cs.Height {
		return
	}
	ps := cs.GetPropose(req.ProposeHash)
	if ps == nil {
		return
	}
	cs.sendTo(req.From, peerID, ps.Propose())
}

func (cs *ConsensusState) handleTransactionsRequest(req *types.TransactionsRequest, peerID p2p.ID) {
	if req.To != cs.ValIndex {
		return
	}
	var txs types.Txs
	for _, hash := range req.TxHashes {
		if tx := cs.lookupTx(hash); tx != nil {
			txs = append(txs, tx)
		}
	}
	cs.sendTxsResponses(req.From, peerID, txs)
}

func (cs *ConsensusState) handlePrevotesRequest(req *types.PrevotesRequest, peerID p2p.ID) {
	if req.To != cs.ValIndex || req.Height != cs.Height {
		return
	}
	set := cs.Votes.Prevotes(req.Round, req.ProposeHash)
	if set == nil {
		return
	}
	for _, vote := range set.Votes() {
		prevote := vote.(*types.Prevote)
		if req.HasVoted != nil && req.HasVoted.Test(uint(prevote.Validator)) {
			continue
		}
		cs.sendTo(req.From, peerID, prevote)
	}
}

func (cs *ConsensusState) handleBlockRequest(req *types.BlockRequest, peerID p2p.ID) {
	if req.To != cs.ValIndex {
		return
	}
	block := cs.blockStore.LoadBlock(req.Height)
	if block == nil || block.Commit == nil {
		return
	}
	resp := &types.BlockResponse{
		From:  cs.ValIndex,
		To:    req.From,
		Block: block,
	}
	cs.sendTo(req.From, peerID, resp)
}

func (cs *ConsensusState) handlePoolTransactionsRequest(req *types.PoolTransactionsRequest, peerID p2p.ID) {
	if req.To != cs.ValIndex {
		return
	}
	cs.sendTxsResponses(req.From, peerID, cs.mempool.ReapMaxTxs(-1))
}

// lookupTx finds a transaction body in the pool or among committed blocks.
func (cs *ConsensusState) lookupTx(hash tmbytes.HexBytes) types.Tx {
	if tx := cs.mempool.GetTx(types.TxKeyFromHash(hash)); tx != nil {
		return tx
	}
	bz, err := cs.blockStore.Fork().Get(store.TxStoreKey(hash))
	if err != nil || len(bz) == 0 {
		return nil
	}
	return types.Tx(bz)
}

// sendTxsResponses splits the tx set into responses no larger than the
// maximum message size.
func (cs *ConsensusState) sendTxsResponses(dest int32, peerID p2p.ID, txs types.Txs) {
	var (
		batch      types.Txs
		batchBytes int
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		cs.sendTo(dest, peerID, &types.TransactionsResponse{From: cs.ValIndex, To: dest, Txs: batch})
		batch, batchBytes = nil, 0
	}

	for _, tx := range txs {
		if batchBytes+len(tx) > maxTxsResponseBytes && len(batch) > 0 {
			flush()
		}
		batch = append(batch, tx)
		batchBytes += len(tx)
	}
	flush()
}

//-----------------------------------------------------------------------------
// consuming responses

func (cs *ConsensusState) handleTransactionsResponse(resp *types.TransactionsResponse, peerID p2p.ID) {
	for _, tx := range resp.Txs {
		if err := cs.mempool.CheckTx(tx, mempool.TxInfo{SenderP2PID: peerID}); err != nil {
			// duplicates are expected here
			cs.Logger.Debug("tx from response not pooled", "err", err)
		}
		// A tx counts as known only while its body is retrievable. If the
		// pool refused it (full, too large) the propose stays incomplete:
		// voting for a propose we cannot execute would be worse than
		// waiting out the round.
		key := types.TxKey(tx)
		if cs.mempool.HasTx(key) {
			cs.markTxKnown(key)
		}
	}
}

// markTxKnown completes any propose that was waiting for the tx body.
func (cs *ConsensusState) markTxKnown(key [types.TxKeySize]byte) {
	for _, ps := range cs.ProposesWithUnknownTxs() {
		if ps.MarkTxKnown(key) {
			cs.handleFullPropose(ps)
		}
	}
}

// handleBlockResponse applies a committed block received through catch-up.
// The commit proof is verified against the validator set before the block
// touches the executor.
func (cs *ConsensusState) handleBlockResponse(resp *types.BlockResponse, peerID p2p.ID) {
	block := resp.Block
	if block.Height != cs.Height {
		cs.Logger.Debug("block response for another height", "got", block.Height, "current", cs.Height)
		return
	}
	if block.Commit == nil {
		cs.Logger.Info("block response without commit proof", "height", block.Height)
		return
	}
	if err := block.Commit.Verify(cs.state.ChainID, cs.Validators); err != nil {
		cs.Logger.Info("block response with invalid commit", "err", err)
		return
	}
	if !bytes.Equal(block.Commit.BlockHash, block.Hash()) {
		cs.Logger.Info("block response commit proves a different block",
			"commit", block.Commit.BlockHash, "block", block.Hash())
		return
	}

	newState, err := cs.blockExec.ApplyBlock(cs.state, block)
	if err != nil {
		cs.Logger.Error("apply block from catch-up failed", "height", block.Height, "err", err)
		return
	}
	cs.state = newState

	cs.Logger.Info("caught up via block response", "height", block.Height, "hash", block.Hash())
	cs.metric.MarkCommitted(block.Height, block.Hash())

	cs.NewHeight(block.Hash())
	cs.broadcastStatus()
	cs.enterNewRound(cs.Height, types.InitialRound)
}
