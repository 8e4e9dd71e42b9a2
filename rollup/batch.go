package rollup

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/crypto"
)

// BatchHash is a fixed-capacity batch of chunks: NumValidChunks real chunks
// followed by padding. It is constructed once by NewBatchHash and never
// mutated; downstream consumers rely on its invariants without re-checking.
type BatchHash struct {
	// Chunks holds every slot, real chunks first.
	Chunks [MaxChunks]ChunkSlot

	// NumValidChunks is the number of real chunks, in [1, MaxChunks].
	NumValidChunks int

	// ChainID shared by every chunk.
	ChainID uint64

	// DataHash is keccak256 over the real chunks' data hashes.
	DataHash common.Hash

	// PublicInputHash is the batch-level public input hash.
	PublicInputHash common.Hash
}

// BatchPublicInput is the decoded content of the batch public input hash
// preimage.
type BatchPublicInput struct {
	ChainID       uint64      `json:"chainId"`
	PrevStateRoot common.Hash `json:"prevStateRoot"`
	PostStateRoot common.Hash `json:"postStateRoot"`
	WithdrawRoot  common.Hash `json:"withdrawRoot"`
	DataHash      common.Hash `json:"dataHash"`
}

// NewBatchHash validates the real chunks, pads them to MaxChunks and
// computes the batch hashes. Chunks must share one chain id and each chunk's
// prev state root must equal its predecessor's post state root.
func NewBatchHash(real []ChunkHash) (*BatchHash, error) {
	slots, err := Pad(real)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(real); i++ {
		if real[i].ChainID != real[0].ChainID {
			return nil, &ChunkError{Index: i, Err: ErrChainIDMismatch}
		}
		if real[i].PrevStateRoot != real[i-1].PostStateRoot {
			return nil, &ChunkError{Index: i, Err: ErrBrokenChunkLinkage}
		}
	}

	k := len(real)
	data := make([]byte, 0, DigestLen*k)
	for i := range real {
		data = append(data, real[i].DataHash[:]...)
	}
	b := &BatchHash{
		Chunks:         slots,
		NumValidChunks: k,
		ChainID:        real[0].ChainID,
		DataHash:       crypto.Keccak256Hash(data),
	}
	b.PublicInputHash = crypto.Keccak256Hash(b.publicInputPreimage())
	return b, nil
}

// PublicInput returns the fields committed to by PublicInputHash.
func (b *BatchHash) PublicInput() BatchPublicInput {
	first, last := &b.Chunks[0].Chunk, &b.Chunks[b.NumValidChunks-1].Chunk
	return BatchPublicInput{
		ChainID:       b.ChainID,
		PrevStateRoot: first.PrevStateRoot,
		PostStateRoot: last.PostStateRoot,
		WithdrawRoot:  last.WithdrawRoot,
		DataHash:      b.DataHash,
	}
}

func (b *BatchHash) publicInputPreimage() []byte {
	pi := b.PublicInput()
	buf := make([]byte, ChunkPreimageLen)
	binary.BigEndian.PutUint64(buf[ChainIDOffset:], pi.ChainID)
	copy(buf[PrevStateRootOffset:], pi.PrevStateRoot[:])
	copy(buf[PostStateRootOffset:], pi.PostStateRoot[:])
	copy(buf[WithdrawRootOffset:], pi.WithdrawRoot[:])
	copy(buf[DataHashOffset:], pi.DataHash[:])
	return buf
}

// RealChunks returns a copy of the real chunks.
func (b *BatchHash) RealChunks() []ChunkHash {
	out := make([]ChunkHash, b.NumValidChunks)
	for i := range out {
		out[i] = b.Chunks[i].Chunk
	}
	return out
}

// ChunkPublicInputHashes returns the public input hash every slot's chunk
// proof is expected to expose, padding slots included.
func (b *BatchHash) ChunkPublicInputHashes() [MaxChunks]common.Hash {
	var out [MaxChunks]common.Hash
	for i := range b.Chunks {
		out[i] = b.Chunks[i].Chunk.Hash()
	}
	return out
}

// ExtractHashPreimages returns the NumPreimages preimages in their fixed
// order: the batch public input preimage, the full-width batch data
// preimage (padding slots contribute zero hashes), then one preimage per
// chunk slot.
func (b *BatchHash) ExtractHashPreimages() [][]byte {
	out := make([][]byte, 0, NumPreimages)
	out = append(out, b.publicInputPreimage())

	data := make([]byte, BatchDataPreimageLen)
	for i := range b.Chunks {
		copy(data[i*DigestLen:], b.Chunks[i].Chunk.DataHash[:])
	}
	out = append(out, data)

	for i := range b.Chunks {
		out = append(out, b.Chunks[i].Chunk.Preimage())
	}
	return out
}

// AbsorbedLen returns how many leading bytes of preimage i are hashed. Only
// the batch data preimage is partially absorbed: its first 32 bytes per
// real chunk.
func (b *BatchHash) AbsorbedLen(i int) int {
	switch {
	case i == BatchDataPreimageIndex:
		return DigestLen * b.NumValidChunks
	case i >= 0 && i < NumPreimages:
		return ChunkPreimageLen
	default:
		return 0
	}
}
