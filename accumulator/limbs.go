package accumulator

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
)

// topLimbBits bounds the most significant limb so the recombined value
// fits in 256 bits.
const topLimbBits = 256 - (Limbs-1)*Bits

var limbMask = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), Bits), uint256.NewInt(1))

// SplitLimbs decomposes a base-field element into Limbs limbs of Bits bits,
// least significant limb first.
func SplitLimbs(x *fp.Element) [Limbs]fr.Element {
	var out [Limbs]fr.Element
	b := x.Bytes()
	v := new(uint256.Int).SetBytes32(b[:])
	var limb uint256.Int
	for i := range out {
		limb.Rsh(v, uint(i*Bits))
		limb.And(&limb, limbMask)
		lb := limb.Bytes32()
		out[i].SetBytes(lb[:])
	}
	return out
}

// JoinLimbs recombines Σ limb_i·2^(Bits·i). Each limb must fit in Bits bits
// and the result must be a canonical base-field element.
func JoinLimbs(limbs []fr.Element) (fp.Element, error) {
	var x fp.Element
	if len(limbs) != Limbs {
		return x, fmt.Errorf("%w: %d limbs, want %d", ErrLimbRange, len(limbs), Limbs)
	}
	v := new(uint256.Int)
	for i := Limbs - 1; i >= 0; i-- {
		lb := limbs[i].Bytes()
		limb := new(uint256.Int).SetBytes32(lb[:])
		width := Bits
		if i == Limbs-1 {
			width = topLimbBits
		}
		if limb.BitLen() > width {
			return x, fmt.Errorf("%w: limb %d has %d bits", ErrLimbRange, i, limb.BitLen())
		}
		v.Lsh(v, Bits)
		v.Or(v, limb)
	}
	b := v.Bytes32()
	if err := x.SetBytesCanonical(b[:]); err != nil {
		return x, fmt.Errorf("%w: %v", ErrLimbRange, err)
	}
	return x, nil
}
