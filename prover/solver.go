package prover

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/linker"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
)

// Solver checks satisfiability without proving. Its proof is the serialized
// full witness, so it is not zero knowledge and not succinct.
type Solver struct {
	ccs constraint.ConstraintSystem
	log *log.Logger
}

// NewSolver compiles the circuit.
func NewSolver(logger *log.Logger) (*Solver, error) {
	if logger == nil {
		logger = log.Default()
	}
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	return &Solver{ccs: ccs, log: logger.Module("solver")}, nil
}

func (s *Solver) Name() string { return "solver" }

// Prove solves the assignment and returns the serialized witness.
func (s *Solver) Prove(assignment *linker.Circuit) ([]byte, error) {
	timer := metrics.NewTimer(metrics.ProveTime)
	defer timer.Stop()

	w, err := frontend.NewWitness(assignment, field())
	if err != nil {
		return nil, fmt.Errorf("prover: witness: %w", err)
	}
	if err := s.ccs.IsSolved(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsatisfied, err)
	}
	return w.MarshalBinary()
}

// Verify re-solves the witness carried by proof and checks that its public
// part is inst.
func (s *Solver) Verify(proof []byte, inst instance.Vector) error {
	pub, err := publicAssignment(inst)
	if err != nil {
		return err
	}
	want, err := frontend.NewWitness(pub, field(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("prover: public witness: %w", err)
	}
	w, err := witness.New(field())
	if err != nil {
		return err
	}
	if err := w.UnmarshalBinary(proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	got, err := w.Public()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	gb, err := got.MarshalBinary()
	if err != nil {
		return err
	}
	wb, err := want.MarshalBinary()
	if err != nil {
		return err
	}
	if !bytes.Equal(gb, wb) {
		return fmt.Errorf("%w: instance mismatch", ErrInvalidProof)
	}
	if err := s.ccs.IsSolved(w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	metrics.ProofsVerified.Inc()
	return nil
}
