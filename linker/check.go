package linker

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
	"github.com/eth2030/aggregator/rollup"
)

// Witness is the keccak table output the linker inspects.
type Witness struct {
	// Traces holds one trace per preimage, in ExtractHashPreimages order.
	Traces []*keccak.Trace

	// NumValidChunks is the number of real chunks.
	NumValidChunks int

	// Challenge is the rolling checksum challenge the traces were built
	// with.
	Challenge fr.Element
}

// Inputs returns the keccak table inputs of a batch in preimage order.
func Inputs(b *rollup.BatchHash) []keccak.Input {
	pre := b.ExtractHashPreimages()
	in := make([]keccak.Input, len(pre))
	for i := range pre {
		in[i] = keccak.Input{Data: pre[i], Absorbed: b.AbsorbedLen(i)}
	}
	return in
}

// NewWitness reads the preimage and digest cells of a batch with
// numValidChunks real chunks out of a table assignment's column.
func NewWitness(asg *keccak.Assignment, numValidChunks int) *Witness {
	traces := make([]*keccak.Trace, len(asg.Traces))
	for i, tr := range asg.Traces {
		traces[i] = &keccak.Trace{
			Input:    asg.Preimage(i),
			Absorbed: tr.Absorbed,
			Digest:   asg.Digest(i),
			BlockRLC: tr.BlockRLC,
		}
	}
	return &Witness{Traces: traces, NumValidChunks: numValidChunks, Challenge: asg.Challenge}
}

// Linker checks batch consistency over values.
type Linker struct {
	bands Bands
	log   *log.Logger
}

// New creates a Linker. A nil logger uses the package default.
func New(logger *log.Logger) *Linker {
	if logger == nil {
		logger = log.Default()
	}
	return &Linker{bands: NewBands(rollup.MaxChunks), log: logger.Module("linker")}
}

// Bands returns the data-length band table.
func (l *Linker) Bands() Bands { return l.bands }

func (w *Witness) validate() error {
	if len(w.Traces) != rollup.NumPreimages {
		return fmt.Errorf("%w: %d traces, want %d", ErrWitnessShape, len(w.Traces), rollup.NumPreimages)
	}
	if w.NumValidChunks < 1 || w.NumValidChunks > rollup.MaxChunks {
		return fmt.Errorf("%w: %d valid chunks", ErrWitnessShape, w.NumValidChunks)
	}
	for i, tr := range w.Traces {
		want := rollup.ChunkPreimageLen
		if i == rollup.BatchDataPreimageIndex {
			want = rollup.BatchDataPreimageLen
		}
		if tr == nil || len(tr.Input) != want {
			return fmt.Errorf("%w: trace %d is not %d bytes wide", ErrWitnessShape, i, want)
		}
	}
	return nil
}

// field returns the 32-byte field of a 136-byte preimage at offset.
func field(pre []byte, offset int) []byte {
	return pre[offset : offset+rollup.DigestLen]
}

// Check evaluates every rule and returns the first violation.
func (l *Linker) Check(w *Witness) error {
	if err := w.validate(); err != nil {
		return err
	}
	if err := l.check(w); err != nil {
		metrics.ConsistencyViolations.Inc()
		l.log.Warn("batch consistency violation", "err", err)
		return err
	}
	l.log.Debug("batch consistent", "valid_chunks", w.NumValidChunks)
	return nil
}

func (l *Linker) check(w *Witness) error {
	var (
		k     = w.NumValidChunks
		batch = w.Traces[rollup.BatchPreimageIndex].Input
		data  = w.Traces[rollup.BatchDataPreimageIndex]
		chunk = func(i int) []byte { return w.Traces[rollup.FirstChunkPreimageIndex+i].Input }
	)

	dataDigest := keccak.FlipWords(data.Digest)
	if !bytes.Equal(field(batch, rollup.DataHashOffset), dataDigest[:]) {
		return &ViolationError{Rule: RuleDigestReuse, Chunk: BatchLevel}
	}

	if !bytes.Equal(field(batch, rollup.PrevStateRootOffset), field(chunk(0), rollup.PrevStateRootOffset)) {
		return &ViolationError{Rule: RuleRootSharing, Chunk: 0}
	}
	last := chunk(rollup.MaxChunks - 1)
	if !bytes.Equal(field(batch, rollup.PostStateRootOffset), field(last, rollup.PostStateRootOffset)) ||
		!bytes.Equal(field(batch, rollup.WithdrawRootOffset), field(last, rollup.WithdrawRootOffset)) {
		return &ViolationError{Rule: RuleRootSharing, Chunk: rollup.MaxChunks - 1}
	}

	block := l.bands.Lookup(k)
	want := keccak.RLC(data.Input[:rollup.DigestLen*k], w.Challenge)
	if block == 0 || block > len(data.BlockRLC) || !data.BlockRLC[block-1].Equal(&want) {
		return &ViolationError{Rule: RuleDataHashLength, Chunk: BatchLevel}
	}

	for i := 1; i < k; i++ {
		if !bytes.Equal(field(chunk(i), rollup.PrevStateRootOffset), field(chunk(i-1), rollup.PostStateRootOffset)) {
			return &ViolationError{Rule: RuleContinuity, Chunk: i}
		}
	}

	for i := 0; i < rollup.MaxChunks; i++ {
		if !bytes.Equal(chunk(i)[:rollup.ChainIDLen], batch[:rollup.ChainIDLen]) {
			return &ViolationError{Rule: RuleChainID, Chunk: i}
		}
	}

	zero := make([]byte, rollup.DigestLen)
	for i := k; i < rollup.MaxChunks; i++ {
		if !bytes.Equal(field(chunk(i), rollup.PrevStateRootOffset), field(chunk(i), rollup.PostStateRootOffset)) {
			return &ViolationError{Rule: RulePaddingShape, Chunk: i}
		}
	}
	for i := k; i < rollup.MaxChunks; i++ {
		if !bytes.Equal(field(chunk(i), rollup.DataHashOffset), zero) {
			return &ViolationError{Rule: RulePaddingData, Chunk: i}
		}
	}

	for i := 0; i < k; i++ {
		if !bytes.Equal(data.Input[i*rollup.DigestLen:(i+1)*rollup.DigestLen], field(chunk(i), rollup.DataHashOffset)) {
			return &ViolationError{Rule: RuleDataHashComposition, Chunk: i}
		}
	}
	return nil
}
