package keccak

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"
	"golang.org/x/sync/errgroup"

	"github.com/eth2030/aggregator/crypto"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/metrics"
)

const challengeID = "gamma"

// Config sizes the table.
type Config struct {
	// RowsPerRound is the number of rows per permutation round.
	RowsPerRound int

	// LogDegree is log2 of the number of table rows.
	LogDegree int

	// Workers bounds the number of preimages traced concurrently. Zero
	// means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default table sizing.
func DefaultConfig() Config {
	return Config{RowsPerRound: DefaultRowsPerRound, LogDegree: 19}
}

// Table assigns preimages to a keccak table of fixed size.
type Table struct {
	cfg     Config
	log     *log.Logger
	layouts *layoutCache
}

// Assignment is the result of tracing a list of preimages.
type Assignment struct {
	Traces    []*Trace
	Challenge fr.Element
	Layout    *Layout

	// Cells is the table's byte column: every input and digest cell sits
	// at its layout row, all other rows are zero.
	Cells []byte
}

// Preimage reads the input cells of preimage i back from the column.
func (a *Assignment) Preimage(i int) []byte {
	rows := a.Layout.PreimageRows[i][:len(a.Traces[i].Input)]
	out := make([]byte, len(rows))
	for j, r := range rows {
		out[j] = a.Cells[r]
	}
	return out
}

// Digest reads the digest cells of preimage i back from the column.
func (a *Assignment) Digest(i int) [DigestLen]byte {
	var out [DigestLen]byte
	for j, r := range a.Layout.DigestRows[i] {
		out[j] = a.Cells[r]
	}
	return out
}

// NewTable creates a table. A nil logger uses the package default.
func NewTable(cfg Config, logger *log.Logger) (*Table, error) {
	if cfg.RowsPerRound < WordBytes {
		return nil, fmt.Errorf("%w: %d < %d", ErrRowsPerRound, cfg.RowsPerRound, WordBytes)
	}
	if logger == nil {
		logger = log.Default()
	}
	cache, err := newLayoutCache(16)
	if err != nil {
		return nil, err
	}
	return &Table{cfg: cfg, log: logger.Module("keccak"), layouts: cache}, nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return 1 << t.cfg.LogDegree
}

// Layout returns the (cached) layout for preimages of the given widths.
func (t *Table) Layout(lengths []int) (*Layout, error) {
	return t.layouts.get(lengths, t.cfg.RowsPerRound)
}

// Assign derives the rolling-checksum challenge from the inputs and traces
// every input. Traces are independent and computed concurrently.
func (t *Table) Assign(ctx context.Context, inputs []Input) (*Assignment, error) {
	lengths := make([]int, len(inputs))
	for i, in := range inputs {
		if in.Absorbed < 0 || in.Absorbed > len(in.Data) {
			return nil, fmt.Errorf("%w: input %d absorbs %d of %d bytes", ErrAbsorbedRange, i, in.Absorbed, len(in.Data))
		}
		lengths[i] = len(in.Data)
	}
	layout, err := t.Layout(lengths)
	if err != nil {
		return nil, err
	}
	if capacity := Capacity(t.NumRows(), t.cfg.RowsPerRound); layout.NumBlocks > capacity {
		return nil, fmt.Errorf("%w: %d blocks, capacity %d", ErrTableCapacity, layout.NumBlocks, capacity)
	}

	gamma, err := Challenge(inputs)
	if err != nil {
		return nil, err
	}

	traces := make([]*Trace, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	workers := t.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := NewTrace(inputs[i], gamma)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			traces[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cells := make([]byte, layout.NumBlocks*BlockRows(t.cfg.RowsPerRound))
	for i, tr := range traces {
		for j, v := range tr.Input {
			cells[layout.PreimageRows[i][j]] = v
		}
		for j, v := range tr.Digest {
			cells[layout.DigestRows[i][j]] = v
		}
	}
	metrics.KeccakTraces.Add(int64(len(traces)))
	t.log.Debug("keccak table assigned", "preimages", len(traces), "blocks", layout.NumBlocks)
	return &Assignment{Traces: traces, Challenge: gamma, Layout: layout, Cells: cells}, nil
}

// Challenge derives the rolling-checksum challenge by Fiat-Shamir over every
// input's absorbed length and full cell contents.
func Challenge(inputs []Input) (fr.Element, error) {
	var gamma fr.Element
	ts := fiatshamir.NewTranscript(crypto.NewKeccakState(), challengeID)
	var n [8]byte
	for _, in := range inputs {
		binary.BigEndian.PutUint64(n[:], uint64(in.Absorbed))
		if err := ts.Bind(challengeID, n[:]); err != nil {
			return gamma, err
		}
		if err := ts.Bind(challengeID, in.Data); err != nil {
			return gamma, err
		}
	}
	b, err := ts.ComputeChallenge(challengeID)
	if err != nil {
		return gamma, err
	}
	gamma.SetBytes(b)
	return gamma, nil
}
