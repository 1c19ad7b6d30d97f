package types

import (
	"bytes"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"permachain/types"
)

//-----------------------------------------------------------------------------
// RoundStepType enum type

// RoundStepType enumerates the phases of one consensus round.
type RoundStepType uint8

const (
	RoundStepNewHeight = RoundStepType(0x01) // waiting to start a new height
	RoundStepPropose   = RoundStepType(0x02) // waiting for (or building) the propose
	RoundStepPrevote   = RoundStepType(0x03) // propose known, collecting prevotes
	RoundStepPrecommit = RoundStepType(0x04) // locked, collecting precommits
	RoundStepCommit    = RoundStepType(0x05) // quorum reached, committing
)

func (rs RoundStepType) String() string {
	switch rs {
	case RoundStepNewHeight:
		return "NewHeight"
	case RoundStepPropose:
		return "Propose"
	case RoundStepPrevote:
		return "Prevote"
	case RoundStepPrecommit:
		return "Precommit"
	case RoundStepCommit:
		return "Commit"
	default:
		return "Unknown"
	}
}

//-----------------------------------------------------------------------------

// Confirmation records a precommit quorum observed for a propose the node has
// not fully received yet. Once the propose and its transactions arrive, the
// node executes it, checks the block hash against the confirmation and
// commits without needing its own votes.
type Confirmation struct {
	Round     types.Round
	BlockHash tmbytes.HexBytes
}

// RoundState is the complete per-height consensus bookkeeping. It is owned by
// the consensus state machine's single event loop and is not goroutine-safe;
// readers outside the loop must go through the state machine's snapshot
// accessors.
//
// Everything except Height, Validators and ValIndex is cleared when the
// height advances; rounds within a height only ever accumulate.
type RoundState struct {
	Height types.Height
	Round  types.Round
	Step   RoundStepType

	Validators *types.ValidatorSet
	// ValIndex is this node's validator index, or -1 for a non-validator
	// observer that follows the chain without voting.
	ValIndex int32

	// LastHash is the hash of the last committed block, named by proposes
	// for this height.
	LastHash tmbytes.HexBytes

	// LockedRound is RoundNone when not locked. Once locked, the node
	// prevotes only for the locked propose in later rounds and the lock can
	// only move forward, never back.
	LockedRound   types.Round
	LockedPropose tmbytes.HexBytes

	Proposes  map[string]*ProposeState
	Confirmed map[string]*Confirmation
	// Blocks holds executed candidate blocks by block hash until one of
	// them commits.
	Blocks map[string]*types.Block
	Votes  *HeightVoteSet

	// OurPrevotes and OurPrecommits remember what this node signed per
	// round, so redelivery and prevote requests reuse the original message
	// instead of signing twice.
	OurPrevotes   map[types.Round]*types.Prevote
	OurPrecommits map[types.Round]*types.Precommit

	// queued holds messages from future rounds of this height; they are
	// replayed in arrival order whenever the round advances.
	queued []types.ConsensusMessage
}

func NewRoundState(height types.Height, validators *types.ValidatorSet, valIndex int32, lastHash tmbytes.HexBytes) *RoundState {
	return &RoundState{
		Height:        height,
		Round:         types.InitialRound,
		Step:          RoundStepNewHeight,
		Validators:    validators,
		ValIndex:      valIndex,
		LastHash:      lastHash,
		LockedRound:   types.RoundNone,
		Proposes:      make(map[string]*ProposeState),
		Confirmed:     make(map[string]*Confirmation),
		Blocks:        make(map[string]*types.Block),
		Votes:         NewHeightVoteSet(validators.Size()),
		OurPrevotes:   make(map[types.Round]*types.Prevote),
		OurPrecommits: make(map[types.Round]*types.Precommit),
	}
}

// LeaderIndex returns the proposer index for the given round of the current
// height.
func (rs *RoundState) LeaderIndex(round types.Round) int32 {
	return rs.Validators.LeaderIndex(rs.Height, round)
}

// IsLeader reports whether this node proposes in the given round.
func (rs *RoundState) IsLeader(round types.Round) bool {
	return rs.ValIndex >= 0 && rs.LeaderIndex(round) == rs.ValIndex
}

// IsValidator reports whether this node votes at all.
func (rs *RoundState) IsValidator() bool { return rs.ValIndex >= 0 }

func (rs *RoundState) Quorum() int { return rs.Validators.Quorum() }

// IsLocked reports whether the node holds a lock this height.
func (rs *RoundState) IsLocked() bool { return rs.LockedRound != types.RoundNone }

// Lock moves the lock to (round, proposeHash). The caller guarantees the
// quorum evidence; the lock invariant is enforced here.
func (rs *RoundState) Lock(round types.Round, proposeHash tmbytes.HexBytes) error {
	if round <= rs.LockedRound {
		return fmt.Errorf("lock cannot move back: locked at %v, asked for %v", rs.LockedRound, round)
	}
	rs.LockedRound = round
	rs.LockedPropose = proposeHash
	return nil
}

//-----------------------------------------------------------------------------
// proposes

// AddPropose files the propose if it is new; exists is true when the same
// propose hash was already known.
func (rs *RoundState) AddPropose(propose *types.Propose, hasTx func(key [types.TxKeySize]byte) bool) (ps *ProposeState, exists bool) {
	key := string(propose.Hash())
	if ps, ok := rs.Proposes[key]; ok {
		return ps, true
	}
	ps = NewProposeState(propose, hasTx)
	rs.Proposes[key] = ps
	return ps, false
}

func (rs *RoundState) GetPropose(hash tmbytes.HexBytes) *ProposeState {
	return rs.Proposes[string(hash)]
}

func (rs *RoundState) HasPropose(hash tmbytes.HexBytes) bool {
	return rs.GetPropose(hash) != nil
}

// Confirm records a precommit quorum for a propose that is not complete
// locally yet.
func (rs *RoundState) Confirm(proposeHash tmbytes.HexBytes, round types.Round, blockHash tmbytes.HexBytes) {
	rs.Confirmed[string(proposeHash)] = &Confirmation{Round: round, BlockHash: blockHash}
}

func (rs *RoundState) Confirmation(proposeHash tmbytes.HexBytes) *Confirmation {
	return rs.Confirmed[string(proposeHash)]
}

// ProposesWithUnknownTxs lists incomplete proposes, for re-requesting
// transaction bodies.
func (rs *RoundState) ProposesWithUnknownTxs() []*ProposeState {
	var out []*ProposeState
	for _, ps := range rs.Proposes {
		if ps.HasUnknownTxs() {
			out = append(out, ps)
		}
	}
	return out
}

//-----------------------------------------------------------------------------
// blocks

func (rs *RoundState) AddBlock(block *types.Block) {
	rs.Blocks[string(block.Hash())] = block
}

func (rs *RoundState) GetBlock(hash tmbytes.HexBytes) *types.Block {
	return rs.Blocks[string(hash)]
}

//-----------------------------------------------------------------------------
// votes

// AddPrevote files the prevote; added is false for a duplicate.
func (rs *RoundState) AddPrevote(vote *types.Prevote) (added bool, set *VoteSet) {
	if added, set = rs.Votes.AddPrevote(vote); added && vote.Validator == rs.ValIndex {
		rs.OurPrevotes[vote.Round] = vote
	}
	return added, set
}

// AddPrecommit files the precommit; added is false for a duplicate.
func (rs *RoundState) AddPrecommit(vote *types.Precommit) (added bool, set *VoteSet) {
	if added, set = rs.Votes.AddPrecommit(vote); added && vote.Validator == rs.ValIndex {
		rs.OurPrecommits[vote.Round] = vote
	}
	return added, set
}

// HasMajorityPrevotes reports a prevote quorum for (round, proposeHash).
func (rs *RoundState) HasMajorityPrevotes(round types.Round, proposeHash tmbytes.HexBytes) bool {
	set := rs.Votes.Prevotes(round, proposeHash)
	return set != nil && set.HasQuorum(rs.Quorum())
}

// HasMajorityPrecommits reports a precommit quorum for (round, proposeHash,
// blockHash).
func (rs *RoundState) HasMajorityPrecommits(round types.Round, proposeHash, blockHash tmbytes.HexBytes) bool {
	set := rs.Votes.Precommits(round, proposeHash, blockHash)
	return set != nil && set.HasQuorum(rs.Quorum())
}

// WeHavePrevoted reports whether this node already prevoted in the round,
// optionally for a specific propose.
func (rs *RoundState) WeHavePrevoted(round types.Round, proposeHash tmbytes.HexBytes) bool {
	v, ok := rs.OurPrevotes[round]
	if !ok {
		return false
	}
	return proposeHash == nil || bytes.Equal(v.ProposeHash, proposeHash)
}

// WeHavePrecommitted reports whether this node already precommitted in the
// round, optionally for a specific propose.
func (rs *RoundState) WeHavePrecommitted(round types.Round, proposeHash tmbytes.HexBytes) bool {
	v, ok := rs.OurPrecommits[round]
	if !ok {
		return false
	}
	return proposeHash == nil || bytes.Equal(v.ProposeHash, proposeHash)
}

//-----------------------------------------------------------------------------
// queued messages

// Queue parks a message from a future round until the round advances.
func (rs *RoundState) Queue(msg types.ConsensusMessage) {
	rs.queued = append(rs.queued, msg)
}

// PopQueued drains the queue; messages still ahead of the node get requeued
// by the caller.
func (rs *RoundState) PopQueued() []types.ConsensusMessage {
	queued := rs.queued
	rs.queued = nil
	return queued
}

func (rs *RoundState) QueuedCount() int { return len(rs.queued) }

//-----------------------------------------------------------------------------
// transitions

// AdvanceRound moves to the next round of the same height. Proposes, votes
// and locks all survive: a propose from round r is still committable in any
// later round.
func (rs *RoundState) AdvanceRound() {
	rs.Round = rs.Round.Next()
	rs.Step = RoundStepPropose
}

// NewHeight resets the state for the next height after a commit. Every
// per-height structure is dropped, the round restarts at 1 and any lock is
// released.
func (rs *RoundState) NewHeight(lastHash tmbytes.HexBytes) {
	rs.Height = rs.Height.Next()
	rs.Round = types.InitialRound
	rs.Step = RoundStepNewHeight
	rs.LastHash = lastHash
	rs.LockedRound = types.RoundNone
	rs.LockedPropose = nil
	rs.Proposes = make(map[string]*ProposeState)
	rs.Confirmed = make(map[string]*Confirmation)
	rs.Blocks = make(map[string]*types.Block)
	rs.Votes = NewHeightVoteSet(rs.Validators.Size())
	rs.OurPrevotes = make(map[types.Round]*types.Prevote)
	rs.OurPrecommits = make(map[types.Round]*types.Precommit)
	rs.queued = nil
}

func (rs *RoundState) String() string {
	return fmt.Sprintf("RoundState{H:%v R:%v S:%v locked:%v proposes:%d queued:%d}",
		rs.Height, rs.Round, rs.Step, rs.LockedRound, len(rs.Proposes), len(rs.queued))
}
