package accumulator

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/ethereum/go-ethereum/common"
)

// NewMockChildProof produces a valid child proof exposing piHash and
// carrying the embedded accumulator, by committing to poly and opening it at
// the transcript point. It stands in for a chunk prover.
func NewMockChildProof(pk *kzg.ProvingKey, vk *VerifyingKey, poly []fr.Element, embedded KzgAccumulator, piHash common.Hash) (*ChildProof, error) {
	p := &ChildProof{Instance: ChildInstance(&embedded, piHash)}
	c, err := kzg.Commit(poly, *pk)
	if err != nil {
		return nil, err
	}
	p.Commitment = c

	zeta, err := evaluationPoint(newChildTranscript(), vk, p)
	if err != nil {
		return nil, err
	}
	opening, err := kzg.Open(poly, zeta, *pk)
	if err != nil {
		return nil, err
	}
	p.Opening = opening
	return p, nil
}

// NewPaddingChildProof proves a padding slot exposing piHash. The proof
// commits to the line piHash + X and embeds the point at infinity as its
// accumulator, so it depends only on the setup and piHash.
func NewPaddingChildProof(pk *kzg.ProvingKey, vk *VerifyingKey, piHash common.Hash) (*ChildProof, error) {
	poly := make([]fr.Element, 2)
	poly[0].SetBytes(piHash[:])
	poly[1].SetOne()
	return NewMockChildProof(pk, vk, poly, KzgAccumulator{}, piHash)
}
