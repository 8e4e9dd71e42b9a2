// Package keccak models the keccak table consumed by the hash-chain linker.
// For every preimage it exposes the absorbed input cells, the digest cells in
// the table's word order, and a rolling random linear combination of the
// absorbed bytes sampled once per absorption block.
package keccak

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/crypto"
)

const (
	// RateBytes is the absorption block width of Keccak-256.
	RateBytes = 136

	// NumRounds is the number of Keccak-f permutation rounds.
	NumRounds = 24

	// WordBytes is the lane width.
	WordBytes = 8

	// DigestLen is the digest width in bytes.
	DigestLen = 32

	// DefaultRowsPerRound is the default number of table rows per round.
	DefaultRowsPerRound = 12
)

var (
	ErrAbsorbedRange = errors.New("keccak: absorbed length out of range")
	ErrTableCapacity = errors.New("keccak: table capacity exceeded")
	ErrRowsPerRound  = errors.New("keccak: rows per round too small")
)

// Input is one preimage handed to the table. Only the first Absorbed bytes
// are hashed, but every byte of Data is exposed as an input cell.
type Input struct {
	Data     []byte
	Absorbed int
}

// Trace is the table's view of a single hashed preimage.
type Trace struct {
	// Input holds the input cells, in preimage order.
	Input []byte

	// Absorbed is the number of leading input bytes that were hashed.
	Absorbed int

	// Digest holds the digest cells in word-reversed order; see FlipWords.
	Digest [DigestLen]byte

	// BlockRLC holds the rolling checksum after each absorption block.
	BlockRLC []fr.Element
}

// NewTrace hashes in and records its cells and rolling checksum under the
// challenge gamma.
func NewTrace(in Input, gamma fr.Element) (*Trace, error) {
	if in.Absorbed < 0 || in.Absorbed > len(in.Data) {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrAbsorbedRange, in.Absorbed, len(in.Data))
	}
	absorbed := in.Data[:in.Absorbed]

	t := &Trace{
		Input:    append([]byte(nil), in.Data...),
		Absorbed: in.Absorbed,
		BlockRLC: make([]fr.Element, NumBlocks(in.Absorbed)),
	}
	var digest [DigestLen]byte
	copy(digest[:], crypto.Keccak256(absorbed))
	t.Digest = FlipWords(digest)

	var acc fr.Element
	for b := range t.BlockRLC {
		start, end := b*RateBytes, min((b+1)*RateBytes, len(absorbed))
		if start < end {
			acc = rlcFrom(acc, absorbed[start:end], gamma)
		}
		t.BlockRLC[b] = acc
	}
	return t, nil
}

// Hash returns the digest in natural byte order.
func (t *Trace) Hash() common.Hash {
	return common.Hash(FlipWords(t.Digest))
}

// NumBlocks returns how many absorption blocks hashing n bytes takes. The
// padding rule always adds a block, so an exact multiple of RateBytes still
// gets one more.
func NumBlocks(n int) int {
	return n/RateBytes + 1
}

// FlipWords converts between preimage byte order and the table's digest
// cell order: the four 8-byte words are reversed, bytes inside a word keep
// their order. It is its own inverse.
func FlipWords(d [DigestLen]byte) [DigestLen]byte {
	var out [DigestLen]byte
	const words = DigestLen / WordBytes
	for i := 0; i < words; i++ {
		copy(out[(words-1-i)*WordBytes:(words-i)*WordBytes], d[i*WordBytes:(i+1)*WordBytes])
	}
	return out
}

// RLC returns the random linear combination of data under gamma, Horner
// style: ((b0·γ + b1)·γ + b2)... Empty input yields zero.
func RLC(data []byte, gamma fr.Element) fr.Element {
	var acc fr.Element
	return rlcFrom(acc, data, gamma)
}

func rlcFrom(acc fr.Element, data []byte, gamma fr.Element) fr.Element {
	var b fr.Element
	for _, v := range data {
		acc.Mul(&acc, &gamma)
		b.SetUint64(uint64(v))
		acc.Add(&acc, &b)
	}
	return acc
}
