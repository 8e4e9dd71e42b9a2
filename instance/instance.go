// Package instance assembles the public instance vector of an aggregate
// proof. The element order is a wire contract with downstream verifiers:
//
//	[0, 12)   folded accumulator: lhs.x, lhs.y, rhs.x, rhs.y, 3 limbs each,
//	          least significant limb first
//	[12, 44)  batch public input hash, one byte per element
//	[44]      number of valid chunks
//
// Any change to this layout must bump Version.
package instance

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/rollup"
)

const (
	// Version tags the element order documented above.
	Version = 1

	// PublicInputHashOffset is the index of the first hash byte.
	PublicInputHashOffset = accumulator.AccLen

	// NumValidChunksOffset is the index of the valid-chunk count.
	NumValidChunksOffset = PublicInputHashOffset + accumulator.DigestLen

	// Len is the number of elements in the vector.
	Len = NumValidChunksOffset + 1
)

var (
	ErrLength     = errors.New("instance: wrong vector length")
	ErrByteRange  = errors.New("instance: hash element is not a byte")
	ErrChunkCount = errors.New("instance: valid chunk count out of range")
)

// Vector is an assembled public instance.
type Vector []fr.Element

// Assemble serializes the folded accumulator, the batch public input hash
// and the valid-chunk count.
func Assemble(acc *accumulator.KzgAccumulator, pi common.Hash, numValidChunks int) (Vector, error) {
	if numValidChunks < 1 || numValidChunks > rollup.MaxChunks {
		return nil, fmt.Errorf("%w: %d", ErrChunkCount, numValidChunks)
	}
	v := make(Vector, Len)
	limbs := acc.Limbs()
	copy(v, limbs[:])
	for i, b := range pi {
		v[PublicInputHashOffset+i].SetUint64(uint64(b))
	}
	v[NumValidChunksOffset].SetUint64(uint64(numValidChunks))
	return v, nil
}

// AccumulatorIndices returns the positions of the accumulator limbs.
func AccumulatorIndices() []int {
	idx := make([]int, accumulator.AccLen)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (v Vector) check() error {
	if len(v) != Len {
		return fmt.Errorf("%w: %d, want %d", ErrLength, len(v), Len)
	}
	return nil
}

// Accumulator reconstructs the folded accumulator from its limbs.
func (v Vector) Accumulator() (accumulator.KzgAccumulator, error) {
	if err := v.check(); err != nil {
		return accumulator.KzgAccumulator{}, err
	}
	return accumulator.FromLimbs(v[:accumulator.AccLen])
}

// PublicInputHash reconstructs the batch public input hash.
func (v Vector) PublicInputHash() (common.Hash, error) {
	var h common.Hash
	if err := v.check(); err != nil {
		return h, err
	}
	for i := range h {
		e := &v[PublicInputHashOffset+i]
		if !e.IsUint64() || e.Uint64() > 0xff {
			return h, fmt.Errorf("%w: element %d", ErrByteRange, PublicInputHashOffset+i)
		}
		h[i] = byte(e.Uint64())
	}
	return h, nil
}

// NumValidChunks returns the valid-chunk count.
func (v Vector) NumValidChunks() (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	e := &v[NumValidChunksOffset]
	if !e.IsUint64() || e.Uint64() < 1 || e.Uint64() > rollup.MaxChunks {
		return 0, fmt.Errorf("%w: %s", ErrChunkCount, e.String())
	}
	return int(e.Uint64()), nil
}

// Bytes returns the concatenated 32-byte big-endian encodings.
func (v Vector) Bytes() []byte {
	out := make([]byte, 0, len(v)*fr.Bytes)
	for i := range v {
		b := v[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}
