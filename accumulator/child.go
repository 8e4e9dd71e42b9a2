package accumulator

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/ethereum/go-ethereum/common"
)

// ChildProof is a chunk proof as seen by the folder: a public instance
// (embedded accumulator limbs followed by the chunk public input hash, one
// byte per element) and a KZG opening of the proof's commitment at the
// transcript point.
//
// Wire format:
//
//	u32 instance length (big-endian)
//	instance elements, 32 bytes each, canonical big-endian
//	commitment C, compressed G1
//	opening quotient H, compressed G1
//	claimed value y, 32 bytes canonical big-endian
type ChildProof struct {
	Instance   []fr.Element
	Commitment kzg.Digest
	Opening    kzg.OpeningProof
}

// MarshalBinary encodes the proof in its wire format.
func (p *ChildProof) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4, 4+fr.Bytes*(len(p.Instance)+1)+2*bn254.SizeOfG1AffineCompressed)
	binary.BigEndian.PutUint32(out, uint32(len(p.Instance)))
	for i := range p.Instance {
		b := p.Instance[i].Bytes()
		out = append(out, b[:]...)
	}
	c, h, y := p.Commitment.Bytes(), p.Opening.H.Bytes(), p.Opening.ClaimedValue.Bytes()
	out = append(out, c[:]...)
	out = append(out, h[:]...)
	return append(out, y[:]...), nil
}

// ParseChildProof decodes a wire-format child proof and checks that its
// instance has the child shape.
func ParseChildProof(blob []byte) (*ChildProof, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedChildProof, len(blob))
	}
	n := binary.BigEndian.Uint32(blob)
	if n != ChildInstanceLen {
		return nil, fmt.Errorf("%w: instance has %d elements, want %d", ErrMalformedChildProof, n, ChildInstanceLen)
	}
	want := 4 + fr.Bytes*(ChildInstanceLen+1) + 2*bn254.SizeOfG1AffineCompressed
	if len(blob) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedChildProof, len(blob), want)
	}

	p := &ChildProof{Instance: make([]fr.Element, ChildInstanceLen)}
	off := 4
	for i := range p.Instance {
		if err := p.Instance[i].SetBytesCanonical(blob[off : off+fr.Bytes]); err != nil {
			return nil, fmt.Errorf("%w: instance element %d: %v", ErrMalformedChildProof, i, err)
		}
		off += fr.Bytes
	}
	if _, err := p.Commitment.SetBytes(blob[off : off+bn254.SizeOfG1AffineCompressed]); err != nil {
		return nil, fmt.Errorf("%w: commitment: %v", ErrMalformedChildProof, err)
	}
	off += bn254.SizeOfG1AffineCompressed
	if _, err := p.Opening.H.SetBytes(blob[off : off+bn254.SizeOfG1AffineCompressed]); err != nil {
		return nil, fmt.Errorf("%w: opening: %v", ErrMalformedChildProof, err)
	}
	off += bn254.SizeOfG1AffineCompressed
	if err := p.Opening.ClaimedValue.SetBytesCanonical(blob[off:]); err != nil {
		return nil, fmt.Errorf("%w: claimed value: %v", ErrMalformedChildProof, err)
	}
	return p, nil
}

// EmbeddedAccumulator decodes the accumulator carried by the instance.
func (p *ChildProof) EmbeddedAccumulator() (KzgAccumulator, error) {
	if len(p.Instance) != ChildInstanceLen {
		return KzgAccumulator{}, fmt.Errorf("%w: instance has %d elements", ErrMalformedChildProof, len(p.Instance))
	}
	acc, err := FromLimbs(p.Instance[:AccLen])
	if err != nil {
		return acc, fmt.Errorf("%w: %v", ErrMalformedChildProof, err)
	}
	return acc, nil
}

// PublicInputHash decodes the trailing public input hash segment. Every
// element must hold a single byte.
func (p *ChildProof) PublicInputHash() (common.Hash, error) {
	var h common.Hash
	if len(p.Instance) != ChildInstanceLen {
		return h, fmt.Errorf("%w: instance has %d elements", ErrMalformedChildProof, len(p.Instance))
	}
	for i, e := range p.Instance[AccLen:] {
		if !e.IsUint64() || e.Uint64() > 0xff {
			return h, fmt.Errorf("%w: public input element %d is not a byte", ErrInstanceMismatch, i)
		}
		h[i] = byte(e.Uint64())
	}
	return h, nil
}

// CheckPublicInputHash compares the instance's public input hash segment
// with the independently computed chunk hash.
func (p *ChildProof) CheckPublicInputHash(expected common.Hash) error {
	got, err := p.PublicInputHash()
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("%w: public input hash %s, want %s", ErrInstanceMismatch, got, expected)
	}
	return nil
}

// ChildInstance builds a child instance from an embedded accumulator and a
// public input hash.
func ChildInstance(acc *KzgAccumulator, pi common.Hash) []fr.Element {
	inst := make([]fr.Element, ChildInstanceLen)
	limbs := acc.Limbs()
	copy(inst, limbs[:])
	for i, b := range pi {
		inst[AccLen+i].SetUint64(uint64(b))
	}
	return inst
}
