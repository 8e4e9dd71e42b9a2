// Package rollup defines the chunk and batch commitments of a rollup batch:
// per-chunk state-root hashes, the fixed-capacity padded batch built from
// them, and the preimages the hash-chain linker consumes.
package rollup

import (
	"errors"
	"fmt"
)

const (
	// MaxChunks is the fixed number of chunk slots in a batch.
	MaxChunks = 10

	// ChainIDLen is the width of the big-endian chain id in a preimage.
	ChainIDLen = 8

	// DigestLen is the width of every root and digest.
	DigestLen = 32

	// ChunkPreimageLen is the width of a chunk (or batch public input)
	// preimage: chain id followed by four 32-byte fields.
	ChunkPreimageLen = ChainIDLen + 4*DigestLen

	// BatchDataPreimageLen is the full width of the batch data-hash preimage,
	// one data hash per slot including padding.
	BatchDataPreimageLen = DigestLen * MaxChunks

	// NumPreimages is the number of preimages extracted from a batch.
	NumPreimages = MaxChunks + 2
)

// Byte offsets of the fields inside a 136-byte chunk or batch preimage.
const (
	ChainIDOffset       = 0
	PrevStateRootOffset = ChainIDOffset + ChainIDLen
	PostStateRootOffset = PrevStateRootOffset + DigestLen
	WithdrawRootOffset  = PostStateRootOffset + DigestLen
	DataHashOffset      = WithdrawRootOffset + DigestLen
)

// Indices into the preimage list returned by BatchHash.ExtractHashPreimages.
const (
	BatchPreimageIndex      = 0
	BatchDataPreimageIndex  = 1
	FirstChunkPreimageIndex = 2
	LastChunkPreimageIndex  = MaxChunks + 1
)

var (
	ErrInvalidChunkCount  = errors.New("rollup: invalid chunk count")
	ErrBrokenChunkLinkage = errors.New("rollup: broken chunk linkage")
	ErrChainIDMismatch    = errors.New("rollup: chain id mismatch")
	ErrInvalidPreimageLen = errors.New("rollup: invalid preimage length")
)

// ChunkError reports a construction failure at a specific chunk index.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%v at chunk %d", e.Err, e.Index)
}

func (e *ChunkError) Unwrap() error { return e.Err }
