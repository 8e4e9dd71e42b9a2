package prover

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/linker"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
)

// Groth16 proves with gnark's Groth16 over BN254.
type Groth16 struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	log *log.Logger
}

// NewGroth16 compiles the circuit and runs a local, non-ceremony setup.
func NewGroth16(logger *log.Logger) (*Groth16, error) {
	if logger == nil {
		logger = log.Default()
	}
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("prover: setup: %w", err)
	}
	g := &Groth16{ccs: ccs, pk: pk, vk: vk, log: logger.Module("groth16")}
	g.log.Info("groth16 setup complete", "constraints", ccs.GetNbConstraints())
	return g, nil
}

// NewGroth16Verifier creates a verify-only backend from a serialized
// verifying key.
func NewGroth16Verifier(r io.Reader, logger *log.Logger) (*Groth16, error) {
	if logger == nil {
		logger = log.Default()
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("prover: read verifying key: %w", err)
	}
	return &Groth16{vk: vk, log: logger.Module("groth16")}, nil
}

func (g *Groth16) Name() string { return "groth16" }

// WriteVerifyingKey serializes the verifying key.
func (g *Groth16) WriteVerifyingKey(w io.Writer) error {
	_, err := g.vk.WriteTo(w)
	return err
}

// Prove returns the serialized proof.
func (g *Groth16) Prove(assignment *linker.Circuit) ([]byte, error) {
	if g.pk == nil {
		return nil, fmt.Errorf("prover: groth16 backend has no proving key")
	}
	timer := metrics.NewTimer(metrics.ProveTime)
	defer timer.Stop()

	w, err := frontend.NewWitness(assignment, field())
	if err != nil {
		return nil, fmt.Errorf("prover: witness: %w", err)
	}
	proof, err := groth16.Prove(g.ccs, g.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsatisfied, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	g.log.Debug("proof generated", "bytes", buf.Len())
	return buf.Bytes(), nil
}

// Verify checks a serialized proof against the instance.
func (g *Groth16) Verify(proof []byte, inst instance.Vector) error {
	pub, err := publicAssignment(inst)
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(pub, field(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("prover: public witness: %w", err)
	}
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := groth16.Verify(p, g.vk, w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	metrics.ProofsVerified.Inc()
	return nil
}
