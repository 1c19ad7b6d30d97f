package types

import (
	"github.com/bits-and-blooms/bitset"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"permachain/types"
)

// VoteSet counts votes of one kind for one subject, at most one per
// validator. The bitset makes redelivered votes a no-op: the first vote a
// validator index lands wins, later ones are absorbed silently.
type VoteSet struct {
	voted *bitset.BitSet
	votes []types.ConsensusVote
	count int
}

func NewVoteSet(numValidators int) *VoteSet {
	return &VoteSet{
		voted: bitset.New(uint(numValidators)),
		votes: make([]types.ConsensusVote, numValidators),
	}
}

// AddVote records the vote under its validator index. It returns false when
// the index is out of range or the validator has already voted here.
func (vs *VoteSet) AddVote(vote types.ConsensusVote) bool {
	idx := vote.ValidatorIndex()
	if idx < 0 || int(idx) >= len(vs.votes) {
		return false
	}
	if vs.voted.Test(uint(idx)) {
		return false
	}
	vs.voted.Set(uint(idx))
	vs.votes[idx] = vote
	vs.count++
	return true
}

func (vs *VoteSet) Count() int { return vs.count }

func (vs *VoteSet) HasQuorum(quorum int) bool { return vs.count >= quorum }

func (vs *VoteSet) HasVoted(idx int32) bool {
	if idx < 0 || int(idx) >= len(vs.votes) {
		return false
	}
	return vs.voted.Test(uint(idx))
}

// Voted returns a copy of the voted bitmap, suitable for embedding in a
// prevotes request so the responder can skip votes the requester already has.
func (vs *VoteSet) Voted() *bitset.BitSet {
	return vs.voted.Clone()
}

// Votes returns the recorded votes in validator-index order.
func (vs *VoteSet) Votes() []types.ConsensusVote {
	out := make([]types.ConsensusVote, 0, vs.count)
	for _, v := range vs.votes {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

//-----------------------------------------------------------------------------

type prevoteKey struct {
	round       types.Round
	proposeHash string
}

type precommitKey struct {
	round       types.Round
	proposeHash string
	blockHash   string
}

// HeightVoteSet holds every vote seen during one height. Prevotes are counted
// per (round, propose hash); precommits additionally per block hash, so a
// quorum always names both the ordering and the execution result it proves.
// The whole structure is dropped when the height advances.
type HeightVoteSet struct {
	numValidators int

	prevotes   map[prevoteKey]*VoteSet
	precommits map[precommitKey]*VoteSet
}

func NewHeightVoteSet(numValidators int) *HeightVoteSet {
	return &HeightVoteSet{
		numValidators: numValidators,
		prevotes:      make(map[prevoteKey]*VoteSet),
		precommits:    make(map[precommitKey]*VoteSet),
	}
}

// AddPrevote files the prevote and returns the set it landed in; added is
// false for duplicates.
func (hvs *HeightVoteSet) AddPrevote(vote *types.Prevote) (added bool, set *VoteSet) {
	key := prevoteKey{vote.Round, string(vote.ProposeHash)}
	set, ok := hvs.prevotes[key]
	if !ok {
		set = NewVoteSet(hvs.numValidators)
		hvs.prevotes[key] = set
	}
	return set.AddVote(vote), set
}

// AddPrecommit files the precommit and returns the set it landed in; added is
// false for duplicates.
func (hvs *HeightVoteSet) AddPrecommit(vote *types.Precommit) (added bool, set *VoteSet) {
	key := precommitKey{vote.Round, string(vote.ProposeHash), string(vote.BlockHash)}
	set, ok := hvs.precommits[key]
	if !ok {
		set = NewVoteSet(hvs.numValidators)
		hvs.precommits[key] = set
	}
	return set.AddVote(vote), set
}

// Prevotes returns the prevote set for (round, proposeHash), or nil.
func (hvs *HeightVoteSet) Prevotes(round types.Round, proposeHash tmbytes.HexBytes) *VoteSet {
	return hvs.prevotes[prevoteKey{round, string(proposeHash)}]
}

// Precommits returns the precommit set for (round, proposeHash, blockHash),
// or nil.
func (hvs *HeightVoteSet) Precommits(round types.Round, proposeHash, blockHash tmbytes.HexBytes) *VoteSet {
	return hvs.precommits[precommitKey{round, string(proposeHash), string(blockHash)}]
}

// KnownPrevotes returns the voted bitmap for (round, proposeHash); an empty
// bitmap when no prevote has been seen yet.
func (hvs *HeightVoteSet) KnownPrevotes(round types.Round, proposeHash tmbytes.HexBytes) *bitset.BitSet {
	if set := hvs.Prevotes(round, proposeHash); set != nil {
		return set.Voted()
	}
	return bitset.New(uint(hvs.numValidators))
}
