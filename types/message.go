package types

// ConsensusMessage is implemented by every signed message the consensus core
// consumes: Propose, Prevote, Precommit and Status. Messages from rounds or
// heights the node has not reached yet are queued as this interface and
// replayed once the node catches up.
type ConsensusMessage interface {
	ValidateBasic() error
	String() string
}

var (
	_ ConsensusMessage = (*Propose)(nil)
	_ ConsensusMessage = (*Prevote)(nil)
	_ ConsensusMessage = (*Precommit)(nil)
	_ ConsensusMessage = (*Status)(nil)
)
