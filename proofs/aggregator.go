package proofs

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/config"
	"github.com/eth2030/aggregator/crypto"
	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/linker"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
	"github.com/eth2030/aggregator/prover"
	"github.com/eth2030/aggregator/rollup"
)

// Aggregator runs the batch pipeline. It holds no per-batch state and may
// be used from several goroutines.
type Aggregator struct {
	table   *keccak.Table
	linker  *linker.Linker
	folder  *accumulator.Folder
	backend prover.Backend
	cache   *VerifyCache
	padding *kzg.ProvingKey
	log     *log.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBlinding supplies the setup powers used to blind folding. Required
// when the fold config enables blinding.
func WithBlinding(pk *kzg.ProvingKey) Option {
	return func(a *Aggregator) { a.folder.WithBlinding(pk) }
}

// WithVerifyCache makes Verify skip attestations it already accepted.
func WithVerifyCache(c *VerifyCache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithPaddingProofs lets Aggregate accept only the real chunks' child
// proofs and prove the padding slots itself under the setup pk.
func WithPaddingProofs(pk *kzg.ProvingKey) Option {
	return func(a *Aggregator) { a.padding = pk }
}

// NewAggregator creates an Aggregator. A nil backend is built from
// cfg.Prover; a nil logger is built from cfg.Log.
func NewAggregator(cfg config.Config, backend prover.Backend, logger *log.Logger, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = cfg.Logger()
	}
	table, err := keccak.NewTable(cfg.KeccakTable(), logger)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		if backend, err = prover.New(cfg.Prover, logger); err != nil {
			return nil, err
		}
	}
	a := &Aggregator{
		table:   table,
		linker:  linker.New(logger),
		folder:  accumulator.NewFolder(cfg.Folder(), logger),
		backend: backend,
		log:     logger.Module("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Aggregate builds the attestation of a batch of real chunks. children
// holds one child proof per chunk slot, real chunks first, and each child's
// Expected hash must be the public input hash of its slot. With
// WithPaddingProofs, children may instead hold only the real chunks' proofs.
// Any failure aborts the whole batch.
func (a *Aggregator) Aggregate(ctx context.Context, chunks []rollup.ChunkHash, children []accumulator.Child) (*AggregateAttestation, error) {
	timer := metrics.NewTimer(metrics.AggregateTime)
	att, err := a.aggregate(ctx, chunks, children)
	elapsed := timer.Stop()
	if err != nil {
		metrics.BatchesRejected.Inc()
		a.log.Warn("batch rejected", "chunks", len(chunks), "err", err)
		return nil, err
	}
	metrics.BatchesAggregated.Inc()
	metrics.ValidChunks.Set(int64(att.NumValidChunks))
	a.log.Info("batch aggregated",
		"valid_chunks", att.NumValidChunks,
		"pi_hash", att.PublicInputHash,
		"backend", att.Backend,
		"elapsed", elapsed)
	return att, nil
}

func (a *Aggregator) aggregate(ctx context.Context, chunks []rollup.ChunkHash, children []accumulator.Child) (*AggregateAttestation, error) {
	batch, err := rollup.NewBatchHash(chunks)
	if err != nil {
		return nil, err
	}
	expected := batch.ChunkPublicInputHashes()
	if a.padding != nil && len(children) == batch.NumValidChunks {
		if children, err = a.padChildren(children, expected); err != nil {
			return nil, err
		}
	}
	if len(children) != rollup.MaxChunks {
		return nil, fmt.Errorf("%w: %d, want %d", ErrChildCount, len(children), rollup.MaxChunks)
	}
	for i := range children {
		if children[i].Expected != expected[i] {
			err := fmt.Errorf("%w: %w", ErrChildMismatch, accumulator.ErrInstanceMismatch)
			return nil, &accumulator.ChildError{Index: i, Err: err}
		}
	}

	asg, err := a.table.Assign(ctx, linker.Inputs(batch))
	if err != nil {
		return nil, err
	}
	if got := asg.Traces[rollup.BatchPreimageIndex].Hash(); got != batch.PublicInputHash {
		return nil, fmt.Errorf("%w: %x != %x", ErrDigestMismatch, got, batch.PublicInputHash)
	}
	w := linker.NewWitness(asg, batch.NumValidChunks)
	if err := a.linker.Check(w); err != nil {
		return nil, err
	}

	fold, err := a.folder.Fold(ctx, children)
	if err != nil {
		return nil, err
	}
	inst, err := instance.Assemble(&fold.Accumulator, batch.PublicInputHash, batch.NumValidChunks)
	if err != nil {
		return nil, err
	}
	assignment, err := w.Assignment(inst)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proof, err := a.backend.Prove(assignment)
	if err != nil {
		return nil, err
	}
	blobs := make([][]byte, len(children))
	for i := range children {
		blobs[i] = children[i].Proof
	}
	return &AggregateAttestation{
		Accumulator:     fold.Accumulator,
		PublicInputHash: batch.PublicInputHash,
		NumValidChunks:  batch.NumValidChunks,
		Instance:        inst,
		Chunks:          batch.RealChunks(),
		ChildProofs:     blobs,
		FoldProof:       fold.Proof,
		Backend:         a.backend.Name(),
		Proof:           proof,
		Version:         instance.Version,
	}, nil
}

// padChildren appends a padding child proof for every slot after the real
// chunks, proved under the first child's verifying key.
func (a *Aggregator) padChildren(given []accumulator.Child, expected [rollup.MaxChunks]common.Hash) ([]accumulator.Child, error) {
	if len(given) == 0 || given[0].VK == nil {
		return nil, fmt.Errorf("%w: no verifying key for padding", ErrChildCount)
	}
	vk := given[0].VK
	out := make([]accumulator.Child, rollup.MaxChunks)
	copy(out, given)
	for i := len(given); i < rollup.MaxChunks; i++ {
		p, err := accumulator.NewPaddingChildProof(a.padding, vk, expected[i])
		if err != nil {
			return nil, err
		}
		blob, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = accumulator.Child{Proof: blob, VK: vk, Expected: expected[i]}
	}
	a.log.Debug("proved padding slots", "padding", rollup.MaxChunks-len(given))
	return out, nil
}

// Verify checks an attestation: its chunks rebuild the batch it claims,
// every child proof succinctly verifies against its slot, the child
// accumulators fold to its accumulator, the accumulator's pairing check
// holds under vk, and the backend proof verifies against the instance its
// fields assemble to.
func (a *Aggregator) Verify(ctx context.Context, att *AggregateAttestation, vk *accumulator.VerifyingKey) error {
	if att == nil {
		return ErrNilAttestation
	}
	if att.Version != instance.Version {
		return fmt.Errorf("%w: %d", ErrVersion, att.Version)
	}
	if att.Backend != a.backend.Name() {
		return fmt.Errorf("proofs: attestation from backend %q, verifier runs %q", att.Backend, a.backend.Name())
	}
	if vk == nil {
		return accumulator.ErrVerifyingKeyMismatch
	}
	var h common.Hash
	if a.cache != nil {
		ah, vh := att.Hash(), vk.Hash()
		h = crypto.Keccak256Hash(ah[:], vh[:])
		if a.cache.Contains(h) {
			return nil
		}
	}

	inst, err := instance.Assemble(&att.Accumulator, att.PublicInputHash, att.NumValidChunks)
	if err != nil {
		return err
	}
	if len(att.Instance) != len(inst) {
		return fmt.Errorf("%w: %d elements", ErrInstanceMismatch, len(att.Instance))
	}
	for i := range inst {
		if !inst[i].Equal(&att.Instance[i]) {
			return fmt.Errorf("%w: element %d", ErrInstanceMismatch, i)
		}
	}

	batch, err := rollup.NewBatchHash(att.Chunks)
	if err != nil {
		return err
	}
	if batch.PublicInputHash != att.PublicInputHash || batch.NumValidChunks != att.NumValidChunks {
		return fmt.Errorf("%w: chunks hash to %x with %d valid", ErrInstanceMismatch, batch.PublicInputHash, batch.NumValidChunks)
	}
	if len(att.ChildProofs) != rollup.MaxChunks {
		return fmt.Errorf("%w: %d child proofs", ErrChildCount, len(att.ChildProofs))
	}
	expected := batch.ChunkPublicInputHashes()
	children := make([]accumulator.Child, rollup.MaxChunks)
	for i := range children {
		children[i] = accumulator.Child{Proof: att.ChildProofs[i], VK: vk, Expected: expected[i]}
	}
	accs, err := a.folder.VerifyChildren(ctx, children)
	if err != nil {
		return err
	}
	folded, _, err := accumulator.VerifyFold(accs, att.FoldProof)
	if err != nil {
		return err
	}
	if !folded.Equal(&att.Accumulator) {
		return ErrFoldMismatch
	}
	ok, err := att.Accumulator.Decide(&vk.KZG)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccumulatorRejected
	}
	if err := a.backend.Verify(att.Proof, inst); err != nil {
		return err
	}
	if a.cache != nil {
		a.cache.Add(h)
	}
	a.log.Debug("attestation verified", "pi_hash", att.PublicInputHash)
	return nil
}
