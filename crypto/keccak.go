// Package crypto holds the hashing helpers shared by the batch and
// accumulation code.
package crypto

import (
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	var h common.Hash
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

// NewKeccakState returns a fresh Keccak-256 hasher, used as the transcript
// hash for Fiat-Shamir challenges.
func NewKeccakState() hash.Hash {
	return sha3.NewLegacyKeccak256()
}
