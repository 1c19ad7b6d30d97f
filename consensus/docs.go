package consensus

// Round flow within one height:
//
//                  +-----------+ round timeout +-----------+
//            +---> |  Propose  +-------------->| Propose   |  (round r+1,
//            |     | (round r) |               | (round r+1)|  same proposes
//            |     +-----+-----+               +-----------+  and votes)
//            |           | propose complete
//            |           v
//            |     +-----------+
//            |     |  Prevote  |
//            |     +-----+-----+
//            |           | +2/3 prevotes for (r, propose)
//            |           v
//            |     +-----------+
//            |     | Precommit |  lock(r, propose), execute, vote block hash
//            |     +-----+-----+
//            |           | +2/3 precommits for (r, propose, block)
//            |           v
//            |     +-----------+
//            +-----+  Commit   |  merge patch, NewHeight, round := 1
//   (next height)  +-----------+
//
// Everything inside a height accumulates: proposes, prevotes and precommits
// from round r stay valid in every later round, so a quorum can complete
// after the round has already advanced. Messages from future rounds are
// queued and replayed when their round begins; messages from the next height
// are dropped and recovered through the status/block-request catch-up.
//
// ConsensusState - the state machine; single event loop (receiveRoutine)
//	- RoundState  - per-height bookkeeping: proposes, votes, lock, queue
//	- State       - chain head after the last commit
//	- BlockExecutor - executes proposes against a store fork, merges on commit
//		- Store   - persisted blocks and key-value state
//		- Mempool - pending transaction pool, ordered by arrival
// Reactor - gossip: broadcasts what the state machine emits, feeds what the
// switch receives into peerMsgQueue, answers nothing by itself
