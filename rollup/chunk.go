package rollup

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/crypto"
)

// ChunkHash summarizes one chunk of execution blocks by its state
// commitments. It is immutable once built.
type ChunkHash struct {
	// ChainID of the rollup the chunk belongs to.
	ChainID uint64 `json:"chainId"`

	// PrevStateRoot is the state root before the chunk's first block.
	PrevStateRoot common.Hash `json:"prevStateRoot"`

	// PostStateRoot is the state root after the chunk's last block.
	PostStateRoot common.Hash `json:"postStateRoot"`

	// WithdrawRoot is the withdraw trie root after the chunk.
	WithdrawRoot common.Hash `json:"withdrawRoot"`

	// DataHash commits to the chunk's transaction data. Zero for padding.
	DataHash common.Hash `json:"dataHash"`
}

// Preimage returns chain_id (big-endian) ‖ prev ‖ post ‖ withdraw ‖ data.
func (c *ChunkHash) Preimage() []byte {
	buf := make([]byte, ChunkPreimageLen)
	binary.BigEndian.PutUint64(buf[ChainIDOffset:], c.ChainID)
	copy(buf[PrevStateRootOffset:], c.PrevStateRoot[:])
	copy(buf[PostStateRootOffset:], c.PostStateRoot[:])
	copy(buf[WithdrawRootOffset:], c.WithdrawRoot[:])
	copy(buf[DataHashOffset:], c.DataHash[:])
	return buf
}

// Hash returns keccak256 of the chunk preimage. This is the public input
// hash exposed by the chunk's proof.
func (c *ChunkHash) Hash() common.Hash {
	return crypto.Keccak256Hash(c.Preimage())
}

// IsPadding reports whether the chunk has the padding shape: no state
// transition and no data.
func (c *ChunkHash) IsPadding() bool {
	return c.PrevStateRoot == c.PostStateRoot && c.DataHash == (common.Hash{})
}

// DecodeChunkHash parses the 136-byte canonical encoding produced by
// Preimage.
func DecodeChunkHash(b []byte) (ChunkHash, error) {
	if len(b) != ChunkPreimageLen {
		return ChunkHash{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPreimageLen, len(b), ChunkPreimageLen)
	}
	return ChunkHash{
		ChainID:       binary.BigEndian.Uint64(b[ChainIDOffset:]),
		PrevStateRoot: common.BytesToHash(b[PrevStateRootOffset:PostStateRootOffset]),
		PostStateRoot: common.BytesToHash(b[PostStateRootOffset:WithdrawRootOffset]),
		WithdrawRoot:  common.BytesToHash(b[WithdrawRootOffset:DataHashOffset]),
		DataHash:      common.BytesToHash(b[DataHashOffset:ChunkPreimageLen]),
	}, nil
}

// PaddedChunkHash returns the padding chunk anchored at prev's post state.
func PaddedChunkHash(prev *ChunkHash) ChunkHash {
	return ChunkHash{
		ChainID:       prev.ChainID,
		PrevStateRoot: prev.PostStateRoot,
		PostStateRoot: prev.PostStateRoot,
		WithdrawRoot:  prev.WithdrawRoot,
	}
}
