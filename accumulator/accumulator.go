// Package accumulator implements KZG accumulation over BN254: decoding the
// accumulator a child proof carries in its public instance, succinctly
// re-deriving each child's accumulator from its opening proof, and folding
// N accumulators into one with a Fiat-Shamir random linear combination so a
// single pairing check attests to all of them.
package accumulator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
)

const (
	// Limbs is the number of limbs per base-field coordinate.
	Limbs = 3

	// Bits is the width of each limb.
	Bits = 88

	// AccLen is the number of instance elements encoding one accumulator:
	// lhs.x, lhs.y, rhs.x, rhs.y.
	AccLen = 4 * Limbs

	// DigestLen is the number of single-byte instance elements carrying a
	// public input hash.
	DigestLen = 32

	// ChildInstanceLen is the instance width of a child proof.
	ChildInstanceLen = AccLen + DigestLen

	// EncodedLen is the width of KzgAccumulator.Encode.
	EncodedLen = 2 * bn254.SizeOfG1AffineUncompressed
)

var (
	ErrMalformedChildProof  = errors.New("accumulator: malformed child proof")
	ErrInstanceMismatch     = errors.New("accumulator: child instance mismatch")
	ErrVerifyingKeyMismatch = errors.New("accumulator: verifying keys use different setups")
	ErrNoChildren           = errors.New("accumulator: no child proofs")
	ErrBlindingUnavailable  = errors.New("accumulator: blinding requested without a setup")
	ErrLimbRange            = errors.New("accumulator: limb out of range")
)

// ChildError attributes an accumulation failure to one child proof.
type ChildError struct {
	Index int
	Err   error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("child %d: %v", e.Index, e.Err)
}

func (e *ChildError) Unwrap() error { return e.Err }

// KzgAccumulator is a deferred pairing check: it is valid iff
// e(Lhs, [1]G2) == e(Rhs, [τ]G2).
type KzgAccumulator struct {
	Lhs bn254.G1Affine
	Rhs bn254.G1Affine
}

// Encode returns the canonical encoding: uncompressed Lhs then Rhs.
func (a *KzgAccumulator) Encode() []byte {
	out := make([]byte, 0, EncodedLen)
	l, r := a.Lhs.RawBytes(), a.Rhs.RawBytes()
	out = append(out, l[:]...)
	return append(out, r[:]...)
}

// DecodeKzgAccumulator parses the output of Encode.
func DecodeKzgAccumulator(b []byte) (KzgAccumulator, error) {
	var a KzgAccumulator
	if len(b) != EncodedLen {
		return a, fmt.Errorf("%w: accumulator encoding is %d bytes, want %d", ErrMalformedChildProof, len(b), EncodedLen)
	}
	half := bn254.SizeOfG1AffineUncompressed
	if _, err := a.Lhs.SetBytes(b[:half]); err != nil {
		return a, fmt.Errorf("%w: lhs: %v", ErrMalformedChildProof, err)
	}
	if _, err := a.Rhs.SetBytes(b[half:]); err != nil {
		return a, fmt.Errorf("%w: rhs: %v", ErrMalformedChildProof, err)
	}
	return a, nil
}

// Equal reports whether both points match.
func (a *KzgAccumulator) Equal(b *KzgAccumulator) bool {
	return a.Lhs.Equal(&b.Lhs) && a.Rhs.Equal(&b.Rhs)
}

// Decide performs the deferred pairing check against the setup's G2 pair.
func (a *KzgAccumulator) Decide(vk *kzg.VerifyingKey) (bool, error) {
	var negRhs bn254.G1Affine
	negRhs.Neg(&a.Rhs)
	return bn254.PairingCheck(
		[]bn254.G1Affine{a.Lhs, negRhs},
		[]bn254.G2Affine{vk.G2[0], vk.G2[1]},
	)
}

// Limbs returns the instance encoding of the accumulator.
func (a *KzgAccumulator) Limbs() [AccLen]fr.Element {
	var out [AccLen]fr.Element
	for i, c := range []*bn254.G1Affine{&a.Lhs, &a.Rhs} {
		x, y := SplitLimbs(&c.X), SplitLimbs(&c.Y)
		copy(out[2*i*Limbs:], x[:])
		copy(out[(2*i+1)*Limbs:], y[:])
	}
	return out
}

// FromLimbs reconstructs an accumulator from its instance encoding. Both
// points must lie on the curve; (0, 0) denotes the point at infinity.
func FromLimbs(limbs []fr.Element) (KzgAccumulator, error) {
	var a KzgAccumulator
	if len(limbs) != AccLen {
		return a, fmt.Errorf("%w: %d limbs, want %d", ErrLimbRange, len(limbs), AccLen)
	}
	for i, c := range []*bn254.G1Affine{&a.Lhs, &a.Rhs} {
		x, err := JoinLimbs(limbs[2*i*Limbs : (2*i+1)*Limbs])
		if err != nil {
			return a, err
		}
		y, err := JoinLimbs(limbs[(2*i+1)*Limbs : (2*i+2)*Limbs])
		if err != nil {
			return a, err
		}
		c.X, c.Y = x, y
		if !c.IsOnCurve() {
			return a, fmt.Errorf("%w: point %d not on curve", ErrLimbRange, i)
		}
	}
	return a, nil
}

// NewAccumulator returns the valid accumulator (s·[τ]G1, s·G1) for a scalar
// s, given the first two powers of the setup.
func NewAccumulator(pk *kzg.ProvingKey, s *fr.Element) KzgAccumulator {
	var a KzgAccumulator
	bs := s.BigInt(new(big.Int))
	a.Lhs.ScalarMultiplication(&pk.G1[1], bs)
	a.Rhs.ScalarMultiplication(&pk.G1[0], bs)
	return a
}
