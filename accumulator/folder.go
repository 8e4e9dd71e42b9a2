package accumulator

import (
	"context"
	"fmt"
	"math/big"
	"runtime"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/eth2030/aggregator/crypto"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
)

const foldID = "r"

// Config controls folding.
type Config struct {
	// Workers bounds concurrent succinct verifications. Zero means
	// GOMAXPROCS.
	Workers int

	// Blind appends a random valid accumulator before folding. Off by
	// default so folding is deterministic.
	Blind bool
}

// Child is one input to Fold.
type Child struct {
	// Proof is the wire-format child proof.
	Proof []byte

	// VK is the child's verifying key.
	VK *VerifyingKey

	// Expected is the chunk public input hash the child must expose.
	Expected common.Hash
}

// FoldResult is the output of Fold.
type FoldResult struct {
	// Accumulator is the folded accumulator.
	Accumulator KzgAccumulator

	// Challenge is the folding challenge r.
	Challenge fr.Element

	// Children holds the succinctly verified child accumulators in order.
	Children []KzgAccumulator

	// Proof is the accumulation proof: the encoded blinding accumulator,
	// or empty when folding was not blinded.
	Proof []byte
}

// Folder folds child proofs into one accumulator.
type Folder struct {
	cfg      Config
	log      *log.Logger
	blinding *kzg.ProvingKey
}

// NewFolder creates a folder. A nil logger uses the package default.
func NewFolder(cfg Config, logger *log.Logger) *Folder {
	if logger == nil {
		logger = log.Default()
	}
	return &Folder{cfg: cfg, log: logger.Module("folder")}
}

// WithBlinding supplies the setup powers used to sample blinding
// accumulators.
func (f *Folder) WithBlinding(pk *kzg.ProvingKey) *Folder {
	f.blinding = pk
	return f
}

// Fold succinctly verifies every child in parallel, then derives the
// folding challenge over all resulting accumulators and combines them. The
// challenge is computed only once every child accumulator is known.
func (f *Folder) Fold(ctx context.Context, children []Child) (*FoldResult, error) {
	if f.cfg.Blind && f.blinding == nil {
		return nil, ErrBlindingUnavailable
	}
	timer := metrics.NewTimer(metrics.FoldTime)
	defer timer.Stop()

	accs, err := f.VerifyChildren(ctx, children)
	if err != nil {
		return nil, err
	}

	res := &FoldResult{Children: accs}
	all := accs
	if f.cfg.Blind {
		var s fr.Element
		if _, err := s.SetRandom(); err != nil {
			return nil, err
		}
		blind := NewAccumulator(f.blinding, &s)
		res.Proof = blind.Encode()
		all = append(append([]KzgAccumulator(nil), accs...), blind)
	}
	r, err := foldingChallenge(all)
	if err != nil {
		return nil, err
	}
	res.Challenge = r
	res.Accumulator = combine(all, &r)
	metrics.ChildProofsFolded.Add(int64(len(accs)))
	f.log.Debug("folded child accumulators", "children", len(accs), "blinded", f.cfg.Blind)
	return res, nil
}

// VerifyChildren parses and succinctly verifies every child in parallel
// and returns their accumulators in order. Each child must expose its
// Expected public input hash and share the first child's setup.
func (f *Folder) VerifyChildren(ctx context.Context, children []Child) ([]KzgAccumulator, error) {
	if len(children) == 0 {
		return nil, ErrNoChildren
	}
	for i := range children {
		if children[i].VK == nil {
			return nil, &ChildError{Index: i, Err: fmt.Errorf("%w: missing verifying key", ErrMalformedChildProof)}
		}
		if !children[i].VK.SameSetup(children[0].VK) {
			return nil, &ChildError{Index: i, Err: ErrVerifyingKeyMismatch}
		}
	}

	accs := make([]KzgAccumulator, len(children))
	g, ctx := errgroup.WithContext(ctx)
	workers := f.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range children {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			acc, err := verifyChild(&children[i])
			if err != nil {
				metrics.ChildProofsRejected.Inc()
				return &ChildError{Index: i, Err: err}
			}
			accs[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.log.Warn("child proof rejected", "err", err)
		return nil, err
	}
	return accs, nil
}

func verifyChild(c *Child) (KzgAccumulator, error) {
	p, err := ParseChildProof(c.Proof)
	if err != nil {
		return KzgAccumulator{}, err
	}
	if err := p.CheckPublicInputHash(c.Expected); err != nil {
		return KzgAccumulator{}, err
	}
	return SuccinctVerify(c.VK, p)
}

// VerifyFold recomputes the folded accumulator from the child accumulators
// and the accumulation proof.
func VerifyFold(children []KzgAccumulator, proof []byte) (KzgAccumulator, fr.Element, error) {
	var r fr.Element
	if len(children) == 0 {
		return KzgAccumulator{}, r, ErrNoChildren
	}
	all := children
	if len(proof) > 0 {
		blind, err := DecodeKzgAccumulator(proof)
		if err != nil {
			return KzgAccumulator{}, r, err
		}
		all = append(append([]KzgAccumulator(nil), children...), blind)
	}
	r, err := foldingChallenge(all)
	if err != nil {
		return KzgAccumulator{}, r, err
	}
	return combine(all, &r), r, nil
}

// foldingChallenge hashes the canonical encodings of all accumulators.
func foldingChallenge(accs []KzgAccumulator) (fr.Element, error) {
	var r fr.Element
	ts := fiatshamir.NewTranscript(crypto.NewKeccakState(), foldID)
	for i := range accs {
		if err := ts.Bind(foldID, accs[i].Encode()); err != nil {
			return r, err
		}
	}
	b, err := ts.ComputeChallenge(foldID)
	if err != nil {
		return r, err
	}
	r.SetBytes(b)
	return r, nil
}

// combine returns Σ accs[i]·r^i, evaluated with Horner's rule.
func combine(accs []KzgAccumulator, r *fr.Element) KzgAccumulator {
	var (
		rb             big.Int
		lhs, rhs, l, h bn254.G1Jac
	)
	r.BigInt(&rb)
	last := len(accs) - 1
	lhs.FromAffine(&accs[last].Lhs)
	rhs.FromAffine(&accs[last].Rhs)
	for i := last - 1; i >= 0; i-- {
		l.ScalarMultiplication(&lhs, &rb)
		lhs.Set(&l).AddMixed(&accs[i].Lhs)
		h.ScalarMultiplication(&rhs, &rb)
		rhs.Set(&h).AddMixed(&accs[i].Rhs)
	}
	var out KzgAccumulator
	out.Lhs.FromJacobian(&lhs)
	out.Rhs.FromJacobian(&rhs)
	return out
}
