// Package proofs aggregates up to rollup.MaxChunks chunk proofs into one
// batch attestation: it checks the batch hash chain through the keccak
// table and the linker, folds the child accumulators and proves the
// consistency circuit against the assembled public instance.
package proofs

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/crypto"
	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/rollup"
)

var (
	ErrChildCount          = errors.New("proofs: wrong number of child proofs")
	ErrChildMismatch       = errors.New("proofs: child proof does not belong to chunk slot")
	ErrDigestMismatch      = errors.New("proofs: keccak table digest differs from batch public input hash")
	ErrNilAttestation      = errors.New("proofs: nil attestation")
	ErrVersion             = errors.New("proofs: unsupported instance version")
	ErrInstanceMismatch    = errors.New("proofs: instance does not match attestation")
	ErrFoldMismatch        = errors.New("proofs: folded accumulator does not match children")
	ErrAccumulatorRejected = errors.New("proofs: accumulator pairing check failed")
)

// AggregateAttestation is the output of a successful aggregation.
type AggregateAttestation struct {
	// Accumulator is the folded KZG accumulator.
	Accumulator accumulator.KzgAccumulator

	// PublicInputHash is the batch public input hash.
	PublicInputHash common.Hash

	// NumValidChunks is the number of real chunks in the batch.
	NumValidChunks int

	// Instance is the assembled public instance the proof is checked
	// against.
	Instance instance.Vector

	// Chunks are the real chunks of the batch. Verify rebuilds the batch
	// from them to recover every slot's public input hash.
	Chunks []rollup.ChunkHash

	// ChildProofs holds the wire-format child proof of every chunk slot,
	// padding included. Verify succinctly verifies them again and folds
	// the result with FoldProof.
	ChildProofs [][]byte

	// FoldProof is the accumulation proof.
	FoldProof []byte

	// Backend names the proving backend that produced Proof.
	Backend string
	Proof   []byte

	// Version is the instance layout version.
	Version uint8
}

// Hash returns a keccak digest committing to every attestation field.
func (a *AggregateAttestation) Hash() common.Hash {
	h := crypto.NewKeccakState()
	var n [8]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	write(a.Accumulator.Encode())
	write(a.PublicInputHash[:])
	binary.BigEndian.PutUint64(n[:], uint64(a.NumValidChunks))
	h.Write(n[:])
	write(a.Instance.Bytes())
	binary.BigEndian.PutUint64(n[:], uint64(len(a.Chunks)))
	h.Write(n[:])
	for i := range a.Chunks {
		write(a.Chunks[i].Preimage())
	}
	binary.BigEndian.PutUint64(n[:], uint64(len(a.ChildProofs)))
	h.Write(n[:])
	for _, p := range a.ChildProofs {
		write(p)
	}
	write(a.FoldProof)
	write([]byte(a.Backend))
	write(a.Proof)
	h.Write([]byte{a.Version})
	return common.BytesToHash(h.Sum(nil))
}

type attestationJSON struct {
	Accumulator     hexutil.Bytes      `json:"accumulator"`
	PublicInputHash common.Hash        `json:"publicInputHash"`
	NumValidChunks  hexutil.Uint64     `json:"numValidChunks"`
	Instance        []hexutil.Bytes    `json:"instance"`
	Chunks          []rollup.ChunkHash `json:"chunks"`
	ChildProofs     []hexutil.Bytes    `json:"childProofs"`
	FoldProof       hexutil.Bytes      `json:"foldProof"`
	Backend         string             `json:"backend"`
	Proof           hexutil.Bytes      `json:"proof"`
	Version         hexutil.Uint64     `json:"version"`
}

// MarshalJSON encodes the attestation with hex fields.
func (a *AggregateAttestation) MarshalJSON() ([]byte, error) {
	enc := attestationJSON{
		Accumulator:     a.Accumulator.Encode(),
		PublicInputHash: a.PublicInputHash,
		NumValidChunks:  hexutil.Uint64(a.NumValidChunks),
		Instance:        make([]hexutil.Bytes, len(a.Instance)),
		Chunks:          a.Chunks,
		ChildProofs:     make([]hexutil.Bytes, len(a.ChildProofs)),
		FoldProof:       a.FoldProof,
		Backend:         a.Backend,
		Proof:           a.Proof,
		Version:         hexutil.Uint64(a.Version),
	}
	for i := range a.Instance {
		b := a.Instance[i].Bytes()
		enc.Instance[i] = b[:]
	}
	for i, p := range a.ChildProofs {
		enc.ChildProofs[i] = p
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON decodes an attestation produced by MarshalJSON. Instance
// elements must be canonical.
func (a *AggregateAttestation) UnmarshalJSON(data []byte) error {
	var dec attestationJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	if dec.Version > 0xff {
		return fmt.Errorf("%w: %d", ErrVersion, uint64(dec.Version))
	}
	acc, err := accumulator.DecodeKzgAccumulator(dec.Accumulator)
	if err != nil {
		return err
	}
	inst := make(instance.Vector, len(dec.Instance))
	for i, b := range dec.Instance {
		if len(b) != fr.Bytes {
			return fmt.Errorf("proofs: instance element %d is %d bytes", i, len(b))
		}
		if err := inst[i].SetBytesCanonical(b); err != nil {
			return fmt.Errorf("proofs: instance element %d: %w", i, err)
		}
	}
	var children [][]byte
	if dec.ChildProofs != nil {
		children = make([][]byte, len(dec.ChildProofs))
		for i, b := range dec.ChildProofs {
			children[i] = b
		}
	}
	*a = AggregateAttestation{
		Accumulator:     acc,
		PublicInputHash: dec.PublicInputHash,
		NumValidChunks:  int(dec.NumValidChunks),
		Instance:        inst,
		Chunks:          dec.Chunks,
		ChildProofs:     children,
		FoldProof:       dec.FoldProof,
		Backend:         dec.Backend,
		Proof:           dec.Proof,
		Version:         uint8(dec.Version),
	}
	return nil
}
