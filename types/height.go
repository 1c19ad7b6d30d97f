package types

import "fmt"

// Height is the index of the block slot currently being agreed upon.
// It increases by exactly one per committed block.
type Height int64

const (
	// InitialHeight is the height of the first non-genesis block.
	InitialHeight = Height(1)
)

func (h Height) Int64() int64 { return int64(h) }

func (h Height) Next() Height { return h + 1 }

func (h Height) String() string { return fmt.Sprintf("%d", int64(h)) }

// Round counts leader attempts within a height. The first round of every
// height is 1; RoundNone doubles as the NOT_LOCKED sentinel for locks.
type Round int32

const (
	RoundNone    = Round(0)
	InitialRound = Round(1)
)

func (r Round) Int32() int32 { return int32(r) }

func (r Round) Next() Round { return r + 1 }

func (r Round) String() string { return fmt.Sprintf("%d", int32(r)) }
