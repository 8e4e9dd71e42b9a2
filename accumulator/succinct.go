package accumulator

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/crypto"
)

const (
	zetaID  = "zeta"
	deltaID = "delta"
)

// VerifyingKey identifies a child circuit and the KZG setup it commits
// under.
type VerifyingKey struct {
	KZG kzg.VerifyingKey

	// Digest binds the child circuit into the transcript.
	Digest common.Hash
}

// SameSetup reports whether both keys share the G2 pair, which folding
// their accumulators requires.
func (vk *VerifyingKey) SameSetup(o *VerifyingKey) bool {
	return vk.KZG.G2[0].Equal(&o.KZG.G2[0]) && vk.KZG.G2[1].Equal(&o.KZG.G2[1]) && vk.KZG.G1.Equal(&o.KZG.G1)
}

// Hash commits to the setup points and the circuit digest.
func (vk *VerifyingKey) Hash() common.Hash {
	g1 := vk.KZG.G1.Bytes()
	g2a, g2b := vk.KZG.G2[0].Bytes(), vk.KZG.G2[1].Bytes()
	return crypto.Keccak256Hash(g1[:], g2a[:], g2b[:], vk.Digest[:])
}

// evaluationPoint replays the transcript up to the opening point.
func evaluationPoint(ts *fiatshamir.Transcript, vk *VerifyingKey, p *ChildProof) (fr.Element, error) {
	var zeta fr.Element
	if err := ts.Bind(zetaID, vk.Digest[:]); err != nil {
		return zeta, err
	}
	for i := range p.Instance {
		b := p.Instance[i].Bytes()
		if err := ts.Bind(zetaID, b[:]); err != nil {
			return zeta, err
		}
	}
	c := p.Commitment.Bytes()
	if err := ts.Bind(zetaID, c[:]); err != nil {
		return zeta, err
	}
	b, err := ts.ComputeChallenge(zetaID)
	if err != nil {
		return zeta, err
	}
	zeta.SetBytes(b)
	return zeta, nil
}

func newChildTranscript() *fiatshamir.Transcript {
	return fiatshamir.NewTranscript(crypto.NewKeccakState(), zetaID, deltaID)
}

// SuccinctVerify replays the child's transcript and returns its
// accumulator without performing a pairing. The opening proof contributes
// (C - y·G + ζ·H, H); the accumulator embedded in the instance is merged in
// with the transcript challenge δ.
func SuccinctVerify(vk *VerifyingKey, p *ChildProof) (KzgAccumulator, error) {
	var out KzgAccumulator
	embedded, err := p.EmbeddedAccumulator()
	if err != nil {
		return out, err
	}

	ts := newChildTranscript()
	zeta, err := evaluationPoint(ts, vk, p)
	if err != nil {
		return out, err
	}
	y, h := p.Opening.ClaimedValue.Bytes(), p.Opening.H.Bytes()
	if err := ts.Bind(deltaID, y[:]); err != nil {
		return out, err
	}
	if err := ts.Bind(deltaID, h[:]); err != nil {
		return out, err
	}
	db, err := ts.ComputeChallenge(deltaID)
	if err != nil {
		return out, err
	}
	var delta fr.Element
	delta.SetBytes(db)

	var (
		lhs, t      bn254.G1Jac
		yG, zH, dEL bn254.G1Affine
		s           big.Int
	)
	yG.ScalarMultiplication(&vk.KZG.G1, p.Opening.ClaimedValue.BigInt(&s))
	zH.ScalarMultiplication(&p.Opening.H, zeta.BigInt(&s))
	lhs.FromAffine(&p.Commitment)
	yG.Neg(&yG)
	lhs.AddMixed(&yG)
	lhs.AddMixed(&zH)

	d := delta.BigInt(&s)
	dEL.ScalarMultiplication(&embedded.Lhs, d)
	lhs.AddMixed(&dEL)
	out.Lhs.FromJacobian(&lhs)

	t.FromAffine(&p.Opening.H)
	var dER bn254.G1Affine
	dER.ScalarMultiplication(&embedded.Rhs, d)
	t.AddMixed(&dER)
	out.Rhs.FromJacobian(&t)
	return out, nil
}
