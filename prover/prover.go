// Package prover proves and verifies the consistency circuit. Two backends
// are available: Groth16 produces succinct proofs; Solver only checks that
// the assignment satisfies the constraints and hands back the full witness
// as its "proof".
package prover

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"github.com/eth2030/aggregator/config"
	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/linker"
	"github.com/eth2030/aggregator/log"
)

var (
	ErrUnsatisfied    = errors.New("prover: assignment does not satisfy the circuit")
	ErrInvalidProof   = errors.New("prover: proof rejected")
	ErrUnknownBackend = errors.New("prover: unknown backend")
)

// Backend proves the consistency circuit against an instance vector.
type Backend interface {
	// Name identifies the backend.
	Name() string

	// Prove proves a full circuit assignment.
	Prove(assignment *linker.Circuit) ([]byte, error)

	// Verify checks proof against the public instance.
	Verify(proof []byte, inst instance.Vector) error
}

// New creates the backend selected by cfg.
func New(cfg config.ProverConfig, logger *log.Logger) (Backend, error) {
	SetVerbose(cfg.Verbose)
	switch cfg.Backend {
	case config.BackendGroth16:
		return NewGroth16(logger)
	case config.BackendSolver:
		return NewSolver(logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// SetVerbose routes the constraint compiler's log output to stderr, or
// drops it.
func SetVerbose(verbose bool) {
	if verbose {
		gnarklogger.Set(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
		return
	}
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
}

func field() *big.Int { return ecc.BN254.ScalarField() }

var compiled struct {
	once sync.Once
	ccs  constraint.ConstraintSystem
	err  error
}

// Compile compiles the consistency circuit to R1CS. The result is shared
// by every backend in the process.
func Compile() (constraint.ConstraintSystem, error) {
	compiled.once.Do(func() {
		compiled.ccs, compiled.err = frontend.Compile(field(), r1cs.NewBuilder, &linker.Circuit{})
	})
	return compiled.ccs, compiled.err
}

// publicAssignment returns a circuit carrying only the instance vector.
func publicAssignment(inst instance.Vector) (*linker.Circuit, error) {
	if len(inst) != instance.Len {
		return nil, fmt.Errorf("%w: %d, want %d", instance.ErrLength, len(inst), instance.Len)
	}
	c := new(linker.Circuit)
	for i := range inst {
		c.Instance[i] = inst[i].BigInt(new(big.Int))
	}
	return c, nil
}
