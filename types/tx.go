package types

import (
	"crypto/sha256"

	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// TxKeySize is the size of the fixed-length array key used in lookup maps.
const TxKeySize = sha256.Size

// Tx is an opaque transaction body. Validation and execution semantics are
// supplied by the executor; the consensus core only orders hashes.
type Tx []byte

// Hash computes the tmhash of the raw transaction bytes.
func (tx Tx) Hash() tmbytes.HexBytes {
	return tmhash.Sum(tx)
}

func (tx Tx) ComputeSize() int64 {
	return int64(len(tx))
}

// TxKey is the fixed length array hash used as the key in maps.
func TxKey(tx Tx) [TxKeySize]byte {
	return sha256.Sum256(tx)
}

// TxKeyFromHash converts a wire-carried tx hash into a map key.
func TxKeyFromHash(hash tmbytes.HexBytes) [TxKeySize]byte {
	var key [TxKeySize]byte
	copy(key[:], hash)
	return key
}

// ===== tx array =====

type Txs []Tx

// Hash returns the merkle root of the transaction set.
func (txs Txs) Hash() tmbytes.HexBytes {
	txBzs := make([][]byte, len(txs))
	for i := 0; i < len(txs); i++ {
		txBzs[i] = txs[i].Hash()
	}
	return merkle.HashFromByteSlices(txBzs)
}

// Hashes returns the individual tx hashes in propose order.
func (txs Txs) Hashes() []tmbytes.HexBytes {
	hashes := make([]tmbytes.HexBytes, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return hashes
}

func (txs Txs) Append(other Txs) Txs {
	return append(txs, other...)
}

func ComputeSizeForTxs(txs Txs) int64 {
	var dataSize int64
	for _, tx := range txs {
		dataSize += tx.ComputeSize()
	}
	return dataSize
}
