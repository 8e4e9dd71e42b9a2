package linker

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/selector"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/instance"
	"github.com/eth2030/aggregator/rollup"
)

// DataBlocks is the number of absorption blocks of a full data preimage.
const DataBlocks = rollup.BatchDataPreimageLen/keccak.RateBytes + 1

const byteBits = 8

// Circuit is the consistency circuit. Its only public inputs are the
// assembled instance vector; the preimage and digest cells of the batch and
// every chunk slot are private.
type Circuit struct {
	Instance [instance.Len]frontend.Variable `gnark:",public"`

	BatchPreimage  [rollup.ChunkPreimageLen]frontend.Variable
	DataPreimage   [rollup.BatchDataPreimageLen]frontend.Variable
	ChunkPreimages [rollup.MaxChunks][rollup.ChunkPreimageLen]frontend.Variable

	// Digest cells, in keccak table word order.
	BatchDigest [keccak.DigestLen]frontend.Variable
	DataDigest  [keccak.DigestLen]frontend.Variable

	// DataBlockRLC is the data preimage's rolling checksum per block.
	DataBlockRLC [DataBlocks]frontend.Variable
	Challenge    frontend.Variable
}

// flipped returns the index of preimage byte i inside a digest cell array.
func flipped(i int) int {
	const words = keccak.DigestLen / keccak.WordBytes
	w, j := i/keccak.WordBytes, i%keccak.WordBytes
	return (words-1-w)*keccak.WordBytes + j
}

// Define declares the constraints.
func (c *Circuit) Define(api frontend.API) error {
	// Accumulator limbs are only range checked. Nothing here recomputes
	// the fold; verifiers replay it from the attestation's child proofs.
	for i := 0; i < accumulator.AccLen; i++ {
		api.ToBinary(c.Instance[i], accumulator.Bits)
	}
	c.assertBytes(api)

	// The batch digest is the public input hash.
	for i := 0; i < keccak.DigestLen; i++ {
		api.AssertIsEqual(c.Instance[instance.PublicInputHashOffset+i], c.BatchDigest[flipped(i)])
	}

	// indicator[j] is 1 iff k == j+1; Decoder rejects k outside
	// [1, MaxChunks].
	k := c.Instance[instance.NumValidChunksOffset]
	indicator := selector.Decoder(api, rollup.MaxChunks, api.Sub(k, 1))

	// isReal[i] = Σ_{j >= i} indicator[j], i.e. i < k.
	var isReal [rollup.MaxChunks]frontend.Variable
	isReal[rollup.MaxChunks-1] = indicator[rollup.MaxChunks-1]
	for i := rollup.MaxChunks - 2; i >= 0; i-- {
		isReal[i] = api.Add(isReal[i+1], indicator[i])
	}

	// Digest reuse.
	for i := 0; i < rollup.DigestLen; i++ {
		api.AssertIsEqual(c.BatchPreimage[rollup.DataHashOffset+i], c.DataDigest[flipped(i)])
	}

	// Root sharing.
	first, last := &c.ChunkPreimages[0], &c.ChunkPreimages[rollup.MaxChunks-1]
	for i := 0; i < rollup.DigestLen; i++ {
		api.AssertIsEqual(c.BatchPreimage[rollup.PrevStateRootOffset+i], first[rollup.PrevStateRootOffset+i])
		api.AssertIsEqual(c.BatchPreimage[rollup.PostStateRootOffset+i], last[rollup.PostStateRootOffset+i])
		api.AssertIsEqual(c.BatchPreimage[rollup.WithdrawRootOffset+i], last[rollup.WithdrawRootOffset+i])
	}

	// Data hash length: the checksum of the first 32·k bytes must equal the
	// table's checksum at block ⌈32k/136⌉.
	bands := NewBands(rollup.MaxChunks)
	var (
		acc    frontend.Variable = 0
		prefix = make([]frontend.Variable, 0, rollup.MaxChunks)
		blocks = make([]frontend.Variable, 0, rollup.MaxChunks)
	)
	for i := 0; i < rollup.BatchDataPreimageLen; i++ {
		acc = api.Add(api.Mul(acc, c.Challenge), c.DataPreimage[i])
		if (i+1)%rollup.DigestLen == 0 {
			n := (i + 1) / rollup.DigestLen
			prefix = append(prefix, acc)
			blocks = append(blocks, c.DataBlockRLC[bands.Lookup(n)-1])
		}
	}
	api.AssertIsEqual(dot(api, indicator, prefix), dot(api, indicator, blocks))

	for i := 0; i < rollup.MaxChunks; i++ {
		cur := &c.ChunkPreimages[i]
		isPad := api.Sub(1, isReal[i])

		// Chain id.
		for j := 0; j < rollup.ChainIDLen; j++ {
			api.AssertIsEqual(cur[rollup.ChainIDOffset+j], c.BatchPreimage[rollup.ChainIDOffset+j])
		}
		for j := 0; j < rollup.DigestLen; j++ {
			prev := cur[rollup.PrevStateRootOffset+j]
			post := cur[rollup.PostStateRootOffset+j]
			data := cur[rollup.DataHashOffset+j]

			// Continuity.
			if i > 0 {
				api.AssertIsEqual(api.Mul(isReal[i], api.Sub(prev, c.ChunkPreimages[i-1][rollup.PostStateRootOffset+j])), 0)
			}
			// Padding shape and padding data.
			api.AssertIsEqual(api.Mul(isPad, api.Sub(prev, post)), 0)
			api.AssertIsEqual(api.Mul(isPad, data), 0)
			// Data hash composition.
			api.AssertIsEqual(api.Mul(isReal[i], api.Sub(c.DataPreimage[i*rollup.DigestLen+j], data)), 0)
		}
	}
	return nil
}

// assertBytes range checks every preimage and digest cell to 8 bits.
func (c *Circuit) assertBytes(api frontend.API) {
	check := func(cells []frontend.Variable) {
		for _, v := range cells {
			api.ToBinary(v, byteBits)
		}
	}
	check(c.BatchPreimage[:])
	check(c.DataPreimage[:])
	for i := range c.ChunkPreimages {
		check(c.ChunkPreimages[i][:])
	}
	check(c.BatchDigest[:])
	check(c.DataDigest[:])
}

func dot(api frontend.API, a, b []frontend.Variable) frontend.Variable {
	var sum frontend.Variable = 0
	for i := range a {
		sum = api.Add(sum, api.Mul(a[i], b[i]))
	}
	return sum
}

// Assignment builds a full circuit assignment from the witness and the
// assembled instance.
func (w *Witness) Assignment(inst instance.Vector) (*Circuit, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if len(inst) != instance.Len {
		return nil, fmt.Errorf("%w: instance has %d elements, want %d", ErrWitnessShape, len(inst), instance.Len)
	}
	data := w.Traces[rollup.BatchDataPreimageIndex]
	if len(data.BlockRLC) > DataBlocks {
		return nil, fmt.Errorf("%w: %d data blocks", ErrWitnessShape, len(data.BlockRLC))
	}

	c := new(Circuit)
	for i := range inst {
		c.Instance[i] = inst[i].BigInt(new(big.Int))
	}
	fill(c.BatchPreimage[:], w.Traces[rollup.BatchPreimageIndex].Input)
	fill(c.DataPreimage[:], data.Input)
	for i := range c.ChunkPreimages {
		fill(c.ChunkPreimages[i][:], w.Traces[rollup.FirstChunkPreimageIndex+i].Input)
	}
	fill(c.BatchDigest[:], w.Traces[rollup.BatchPreimageIndex].Digest[:])
	fill(c.DataDigest[:], data.Digest[:])

	// A partially absorbed data preimage has fewer blocks; the unused
	// trailing blocks hold the final checksum.
	for i := range c.DataBlockRLC {
		j := min(i, len(data.BlockRLC)-1)
		c.DataBlockRLC[i] = data.BlockRLC[j].BigInt(new(big.Int))
	}
	c.Challenge = w.Challenge.BigInt(new(big.Int))
	return c, nil
}

func fill(dst []frontend.Variable, src []byte) {
	for i := range dst {
		dst[i] = uint64(src[i])
	}
}
