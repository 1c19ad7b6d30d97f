package store

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
	"github.com/tendermint/tm-db/memdb"

	"permachain/types"
)

// Store persists committed blocks and the key-value state they produce.
// Mutation goes through Fork/Merge only: the executor applies a propose to a
// fork, and the resulting patch is merged as one atomic batch at commit time.
// A failed merge leaves the store untouched; the caller treats it as fatal.
type Store interface {
	// Height returns the height of the last committed block; 0 when only
	// the genesis block is stored.
	Height() types.Height

	// LoadBlock returns the block committed at the height, or nil.
	LoadBlock(height types.Height) *types.Block

	// LoadBlockByHash returns the block with the given hash, or nil.
	LoadBlockByHash(hash tmbytes.HexBytes) *types.Block

	// Head returns the last committed block, or nil for an empty store.
	Head() *types.Block

	// StateHash returns the state root after the last committed block.
	StateHash() tmbytes.HexBytes

	// Fork opens a mutable overlay on the current state.
	Fork() *Fork

	// Merge applies the patch as a single atomic batch.
	Merge(patch *Patch) error

	// SaveGenesisBlock seeds an empty store with the height-0 anchor.
	SaveGenesisBlock(block *types.Block) error

	Close() error
}

var (
	headKey     = []byte("chain/head")
	blockPrefix = []byte("block/")
	hashPrefix  = []byte("block-hash/")
	txPrefix    = []byte("tx/")
)

func blockKey(height types.Height) []byte {
	bz := make([]byte, len(blockPrefix)+8)
	copy(bz, blockPrefix)
	binary.BigEndian.PutUint64(bz[len(blockPrefix):], uint64(height.Int64()))
	return bz
}

func hashKey(hash []byte) []byte {
	return append(append([]byte{}, hashPrefix...), hash...)
}

// TxStoreKey is the key a committed transaction body is stored under.
func TxStoreKey(txHash []byte) []byte {
	return append(append([]byte{}, txPrefix...), txHash...)
}

type headInfo struct {
	Height    types.Height     `json:"height"`
	BlockHash tmbytes.HexBytes `json:"block_hash"`
	StateHash tmbytes.HexBytes `json:"state_hash"`
}

//-----------------------------------------------------------------------------

// NewGoLevelStore opens (or creates) a goleveldb-backed store under dir.
func NewGoLevelStore(name, dir string, logger log.Logger) (*BlockStore, error) {
	db, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, errors.Wrap(err, "opening block store")
	}
	return NewBlockStore(db, logger)
}

// NewMemStore returns a throwaway in-memory store.
func NewMemStore(logger log.Logger) *BlockStore {
	bs, _ := NewBlockStore(memdb.NewDB(), logger)
	return bs
}

func NewBlockStore(db tmdb.DB, logger log.Logger) (*BlockStore, error) {
	bs := &BlockStore{
		db:     db,
		logger: logger,
	}
	if err := bs.loadHead(); err != nil {
		return nil, err
	}
	return bs, nil
}

type BlockStore struct {
	db     tmdb.DB
	logger log.Logger

	mtx  sync.RWMutex
	head headInfo
}

var _ Store = (*BlockStore)(nil)

func (bs *BlockStore) loadHead() error {
	bz, err := bs.db.Get(headKey)
	if err != nil {
		return errors.Wrap(err, "loading chain head")
	}
	if len(bz) == 0 {
		return nil // empty store
	}
	return tmjson.Unmarshal(bz, &bs.head)
}

func (bs *BlockStore) Height() types.Height {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.head.Height
}

func (bs *BlockStore) StateHash() tmbytes.HexBytes {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.head.StateHash
}

func (bs *BlockStore) LoadBlock(height types.Height) *types.Block {
	bz, err := bs.db.Get(blockKey(height))
	if err != nil || len(bz) == 0 {
		return nil
	}
	block := new(types.Block)
	if err := tmjson.Unmarshal(bz, block); err != nil {
		bs.logger.Error("corrupt block in store", "height", height, "err", err)
		return nil
	}
	return block
}

func (bs *BlockStore) LoadBlockByHash(hash tmbytes.HexBytes) *types.Block {
	bz, err := bs.db.Get(hashKey(hash))
	if err != nil || len(bz) != 8 {
		return nil
	}
	return bs.LoadBlock(types.Height(binary.BigEndian.Uint64(bz)))
}

func (bs *BlockStore) Head() *types.Block {
	bs.mtx.RLock()
	head := bs.head
	bs.mtx.RUnlock()
	if len(head.BlockHash) == 0 {
		return nil
	}
	return bs.LoadBlock(head.Height)
}

func (bs *BlockStore) SaveGenesisBlock(block *types.Block) error {
	if h := bs.Head(); h != nil {
		return errors.New("store is not empty")
	}
	fork := bs.Fork()
	patch, err := fork.Commit(block)
	if err != nil {
		return err
	}
	return bs.Merge(patch)
}

// Merge writes the patch in one atomic batch and moves the chain head.
func (bs *BlockStore) Merge(patch *Patch) error {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	batch := bs.db.NewBatch()
	defer batch.Close()

	for _, op := range patch.ops {
		if err := batch.Set(op.key, op.value); err != nil {
			return errors.Wrap(err, "building merge batch")
		}
	}
	if err := batch.WriteSync(); err != nil {
		return errors.Wrap(err, "merging patch")
	}

	bs.head = patch.head
	return nil
}

func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

//-----------------------------------------------------------------------------
// fork / patch

// Fork is a mutable overlay on the store: reads fall through to the backing
// db, writes stay in the overlay until the fork is committed into a Patch.
type Fork struct {
	base    tmdb.DB
	overlay tmdb.DB
	head    headInfo
}

func (bs *BlockStore) Fork() *Fork {
	bs.mtx.RLock()
	head := bs.head
	bs.mtx.RUnlock()
	return &Fork{
		base:    bs.db,
		overlay: memdb.NewDB(),
		head:    head,
	}
}

func (f *Fork) Set(key, value []byte) error {
	return f.overlay.Set(key, value)
}

func (f *Fork) Get(key []byte) ([]byte, error) {
	bz, err := f.overlay.Get(key)
	if err != nil {
		return nil, err
	}
	if bz != nil {
		return bz, nil
	}
	return f.base.Get(key)
}

// Commit seals the fork: it records the block, its hash index and the new
// chain head on top of the overlay writes, and returns the resulting patch.
func (f *Fork) Commit(block *types.Block) (*Patch, error) {
	blockBytes, err := tmjson.Marshal(block)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling block")
	}

	heightBz := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBz, uint64(block.Height.Int64()))

	if err := f.overlay.Set(blockKey(block.Height), blockBytes); err != nil {
		return nil, err
	}
	if err := f.overlay.Set(hashKey(block.Hash()), heightBz); err != nil {
		return nil, err
	}

	head := headInfo{
		Height:    block.Height,
		BlockHash: block.Hash(),
		StateHash: block.StateHash,
	}
	headBytes, err := tmjson.Marshal(head)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling chain head")
	}
	if err := f.overlay.Set(headKey, headBytes); err != nil {
		return nil, err
	}

	patch := &Patch{head: head}
	it, err := f.overlay.Iterator(nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "iterating fork overlay")
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := append([]byte{}, it.Key()...)
		value := append([]byte{}, it.Value()...)
		patch.ops = append(patch.ops, kvOp{key, value})
	}
	return patch, it.Error()
}

type kvOp struct {
	key   []byte
	value []byte
}

// Patch is the sealed write set of a fork plus the chain head it moves to.
type Patch struct {
	ops  []kvOp
	head headInfo
}

func (p *Patch) Height() types.Height        { return p.head.Height }
func (p *Patch) StateHash() tmbytes.HexBytes { return p.head.StateHash }
func (p *Patch) Size() int                   { return len(p.ops) }
