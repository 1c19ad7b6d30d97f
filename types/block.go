package types

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Block is produced only as the result of a successful commit: a propose
// that accumulated a Byzantine quorum of precommits, executed against the
// parent state.
type Block struct {
	Header `json:"header"`
	Data   `json:"data"`

	// Commit carries the precommit quorum proving this block; it lets a
	// lagging peer accept the block without replaying the vote rounds.
	Commit *Commit `json:"commit"`
}

type Header struct {
	ChainID string `json:"chain_id"`
	Height  Height `json:"height"`
	// Round records the round the winning propose was made in.
	Round Round     `json:"round"`
	Time  time.Time `json:"time"`

	NumTxs        int64            `json:"num_txs"`
	LastBlockHash tmbytes.HexBytes `json:"last_block_hash"`
	TxsHash       tmbytes.HexBytes `json:"txs_hash"`
	// StateHash is the storage collaborator's state root after executing
	// this block. For a skip block it equals the parent's state hash.
	StateHash      tmbytes.HexBytes `json:"state_hash"`
	ValidatorsHash tmbytes.HexBytes `json:"validators_hash"`
	ProposerId     int32            `json:"proposer_id"`

	// computed on first access, not part of the wire payload ordering
	BlockHash tmbytes.HexBytes `json:"block_hash"`
}

// Hash computes (and caches) the header hash, which identifies the block.
func (h *Header) Hash() tmbytes.HexBytes {
	if h == nil {
		return nil
	}
	if h.BlockHash == nil {
		h.BlockHash = merkle.HashFromByteSlices([][]byte{
			[]byte(h.ChainID),
			heightBytes(h.Height),
			roundBytes(h.Round),
			h.LastBlockHash,
			h.TxsHash,
			h.StateHash,
			h.ValidatorsHash,
			{byte(h.ProposerId >> 24), byte(h.ProposerId >> 16), byte(h.ProposerId >> 8), byte(h.ProposerId)},
		})
	}
	return h.BlockHash
}

func heightBytes(h Height) []byte {
	v := uint64(h.Int64())
	bz := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		bz[i] = byte(v)
		v >>= 8
	}
	return bz
}

func roundBytes(r Round) []byte {
	v := uint32(r.Int32())
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

type Data struct {
	Txs Txs `json:"txs"`
}

// Hash returns the merkle root of the block's transactions.
func (d *Data) Hash() tmbytes.HexBytes {
	if d == nil {
		return (Txs{}).Hash()
	}
	return d.Txs.Hash()
}

// fillHeader computes the derived header fields before hashing.
func (b *Block) fillHeader() {
	if b.TxsHash == nil {
		b.TxsHash = b.Data.Hash()
	}
	b.NumTxs = int64(len(b.Data.Txs))
}

// Hash returns the block hash, filling derived header fields first.
func (b *Block) Hash() tmbytes.HexBytes {
	if b == nil {
		return nil
	}
	b.fillHeader()
	return b.Header.Hash()
}

// IsSkip reports whether this is an intentionally empty block.
func (b *Block) IsSkip() bool {
	return len(b.Data.Txs) == 0
}

func (b *Block) ValidateBasic() error {
	if b == nil {
		return errors.New("nil block")
	}
	if b.Height < InitialHeight {
		return fmt.Errorf("block has invalid height %v", b.Height)
	}
	if int64(len(b.Data.Txs)) != b.NumTxs {
		return fmt.Errorf("block tx count mismatch: header says %d, data has %d",
			b.NumTxs, len(b.Data.Txs))
	}
	if txsHash := b.Data.Hash(); !bytes.Equal(txsHash, b.TxsHash) {
		return fmt.Errorf("block txs hash mismatch: header %X, computed %X", b.TxsHash, txsHash)
	}
	if len(b.StateHash) == 0 {
		return errors.New("block has no state hash")
	}
	return nil
}

func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{%v txs=%d %X}", b.Height, b.NumTxs, tmbytes.Fingerprint(b.Hash()))
}

// MakeGenesisBlock builds the height-0 anchor block every chain starts from.
func MakeGenesisBlock(chainID string, genesisTime time.Time, validatorsHash tmbytes.HexBytes) *Block {
	b := &Block{
		Header: Header{
			ChainID:        chainID,
			Height:         0,
			Round:          RoundNone,
			Time:           genesisTime,
			LastBlockHash:  tmbytes.HexBytes{},
			StateHash:      tmhash.Sum([]byte(chainID)),
			ValidatorsHash: validatorsHash,
			ProposerId:     -1,
		},
		Data: Data{Txs: Txs{}},
	}
	b.fillHeader()
	b.Hash()
	return b
}

//--------------------------------------------------------------------------------

// Commit is the precommit-quorum proof attached to a committed block.
type Commit struct {
	Height      Height           `json:"height"`
	Round       Round            `json:"round"`
	ProposeHash tmbytes.HexBytes `json:"propose_hash"`
	BlockHash   tmbytes.HexBytes `json:"block_hash"`
	Precommits  []*Precommit     `json:"precommits"`
}

func NewCommit(height Height, round Round, proposeHash, blockHash tmbytes.HexBytes, precommits []*Precommit) *Commit {
	return &Commit{
		Height:      height,
		Round:       round,
		ProposeHash: proposeHash,
		BlockHash:   blockHash,
		Precommits:  precommits,
	}
}

// ValidateBasic checks internal consistency: quorum-sized, one precommit per
// validator, every precommit naming this commit's height, round and hashes.
func (c *Commit) ValidateBasic() error {
	if c == nil {
		return errors.New("nil commit")
	}
	if len(c.Precommits) == 0 {
		return errors.New("commit carries no precommits")
	}
	seen := make(map[int32]struct{}, len(c.Precommits))
	for _, pc := range c.Precommits {
		if err := pc.ValidateBasic(); err != nil {
			return err
		}
		if pc.Height != c.Height || pc.Round != c.Round {
			return fmt.Errorf("commit precommit from wrong height/round: %v", pc)
		}
		if !bytes.Equal(pc.ProposeHash, c.ProposeHash) || !bytes.Equal(pc.BlockHash, c.BlockHash) {
			return fmt.Errorf("commit precommit for wrong propose/block: %v", pc)
		}
		if _, dup := seen[pc.Validator]; dup {
			return fmt.Errorf("commit has several precommits from validator #%d", pc.Validator)
		}
		seen[pc.Validator] = struct{}{}
	}
	return nil
}

// Verify checks the proof against a validator set: quorum arithmetic and
// every precommit signature.
func (c *Commit) Verify(chainID string, vals *ValidatorSet) error {
	if err := c.ValidateBasic(); err != nil {
		return err
	}
	if len(c.Precommits) < vals.Quorum() {
		return fmt.Errorf("commit has %d precommits, quorum is %d", len(c.Precommits), vals.Quorum())
	}
	if len(c.Precommits) > vals.Size() {
		return fmt.Errorf("commit has more precommits (%d) than validators (%d)",
			len(c.Precommits), vals.Size())
	}
	for _, pc := range c.Precommits {
		_, val := vals.GetByIndex(pc.Validator)
		if val == nil {
			return fmt.Errorf("commit precommit from unknown validator #%d", pc.Validator)
		}
		if !val.PubKey.VerifySignature(pc.SignBytes(chainID), pc.Signature) {
			return fmt.Errorf("commit precommit with bad signature from validator #%d", pc.Validator)
		}
	}
	return nil
}
