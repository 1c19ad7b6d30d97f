package types

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Catch-up requests. A request is answered only from local state: a node
// resends the exact signed artifacts it holds, or stays silent. From and To
// are validator indexes; transport-level addressing is the reactor's concern.

// ProposeRequest asks a peer for a propose the requester has seen referenced
// (by a vote) but never received.
type ProposeRequest struct {
	From        int32            `json:"from"`
	To          int32            `json:"to"`
	Height      Height           `json:"height"`
	ProposeHash tmbytes.HexBytes `json:"propose_hash"`
}

func (req *ProposeRequest) ValidateBasic() error {
	if req == nil {
		return errors.New("nil propose request")
	}
	if req.From < 0 || req.To < 0 {
		return errors.New("propose request has negative validator index")
	}
	if len(req.ProposeHash) != tmhash.Size {
		return fmt.Errorf("propose request has malformed hash %X", req.ProposeHash)
	}
	return nil
}

func (req *ProposeRequest) String() string {
	return fmt.Sprintf("ProposeRequest{#%d->#%d %v %X}",
		req.From, req.To, req.Height, tmbytes.Fingerprint(req.ProposeHash))
}

// TransactionsRequest asks a peer for the bodies of the listed tx hashes.
// Responses are size-bounded and split across several TransactionsResponse
// messages when necessary.
type TransactionsRequest struct {
	From     int32              `json:"from"`
	To       int32              `json:"to"`
	TxHashes []tmbytes.HexBytes `json:"tx_hashes"`
}

func (req *TransactionsRequest) ValidateBasic() error {
	if req == nil {
		return errors.New("nil transactions request")
	}
	if req.From < 0 || req.To < 0 {
		return errors.New("transactions request has negative validator index")
	}
	if len(req.TxHashes) == 0 {
		return errors.New("transactions request lists no hashes")
	}
	for _, h := range req.TxHashes {
		if len(h) != tmhash.Size {
			return fmt.Errorf("transactions request has malformed hash %X", h)
		}
	}
	return nil
}

func (req *TransactionsRequest) String() string {
	return fmt.Sprintf("TransactionsRequest{#%d->#%d txs=%d}", req.From, req.To, len(req.TxHashes))
}

// TransactionsResponse carries tx bodies answering a TransactionsRequest or
// PoolTransactionsRequest. A single response never exceeds the configured
// maximum message size; larger sets are split.
type TransactionsResponse struct {
	From int32 `json:"from"`
	To   int32 `json:"to"`
	Txs  Txs   `json:"txs"`
}

func (resp *TransactionsResponse) ValidateBasic() error {
	if resp == nil {
		return errors.New("nil transactions response")
	}
	if len(resp.Txs) == 0 {
		return errors.New("transactions response carries no txs")
	}
	return nil
}

func (resp *TransactionsResponse) String() string {
	return fmt.Sprintf("TransactionsResponse{#%d->#%d txs=%d}", resp.From, resp.To, len(resp.Txs))
}

// PrevotesRequest asks for the prevotes of (height, round, propose hash)
// from validators whose bit is NOT set in HasVoted, so a peer only resends
// what the requester is missing.
type PrevotesRequest struct {
	From        int32            `json:"from"`
	To          int32            `json:"to"`
	Height      Height           `json:"height"`
	Round       Round            `json:"round"`
	ProposeHash tmbytes.HexBytes `json:"propose_hash"`
	HasVoted    *bitset.BitSet   `json:"has_voted"`
}

func (req *PrevotesRequest) ValidateBasic() error {
	if req == nil {
		return errors.New("nil prevotes request")
	}
	if req.From < 0 || req.To < 0 {
		return errors.New("prevotes request has negative validator index")
	}
	if req.Round < InitialRound {
		return fmt.Errorf("prevotes request has invalid round %v", req.Round)
	}
	if len(req.ProposeHash) != tmhash.Size {
		return fmt.Errorf("prevotes request has malformed hash %X", req.ProposeHash)
	}
	return nil
}

func (req *PrevotesRequest) String() string {
	return fmt.Sprintf("PrevotesRequest{#%d->#%d %v/%v %X}",
		req.From, req.To, req.Height, req.Round, tmbytes.Fingerprint(req.ProposeHash))
}

// BlockRequest asks for a committed block at the given height.
type BlockRequest struct {
	From   int32  `json:"from"`
	To     int32  `json:"to"`
	Height Height `json:"height"`
}

func (req *BlockRequest) ValidateBasic() error {
	if req == nil {
		return errors.New("nil block request")
	}
	if req.From < 0 || req.To < 0 {
		return errors.New("block request has negative validator index")
	}
	if req.Height < InitialHeight {
		return fmt.Errorf("block request has invalid height %v", req.Height)
	}
	return nil
}

func (req *BlockRequest) String() string {
	return fmt.Sprintf("BlockRequest{#%d->#%d %v}", req.From, req.To, req.Height)
}

// PoolTransactionsRequest asks a peer for the hashes it holds in its
// transaction pool, so the requester can fetch bodies before the next
// propose references them.
type PoolTransactionsRequest struct {
	From int32 `json:"from"`
	To   int32 `json:"to"`
}

func (req *PoolTransactionsRequest) ValidateBasic() error {
	if req == nil {
		return errors.New("nil pool transactions request")
	}
	if req.From < 0 || req.To < 0 {
		return errors.New("pool transactions request has negative validator index")
	}
	return nil
}

func (req *PoolTransactionsRequest) String() string {
	return fmt.Sprintf("PoolTransactionsRequest{#%d->#%d}", req.From, req.To)
}

// BlockResponse carries a committed block, with its transaction bodies and
// the precommit quorum proving it.
type BlockResponse struct {
	From  int32  `json:"from"`
	To    int32  `json:"to"`
	Block *Block `json:"block"`
}

func (resp *BlockResponse) ValidateBasic() error {
	if resp == nil {
		return errors.New("nil block response")
	}
	if resp.Block == nil {
		return errors.New("block response carries no block")
	}
	return resp.Block.ValidateBasic()
}

func (resp *BlockResponse) String() string {
	return fmt.Sprintf("BlockResponse{#%d->#%d %v}", resp.From, resp.To, resp.Block)
}
