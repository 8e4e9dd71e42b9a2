package instance

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/rollup"
)

func randomAccumulator(rng *rand.Rand) accumulator.KzgAccumulator {
	var a accumulator.KzgAccumulator
	a.Lhs.ScalarMultiplicationBase(new(big.Int).SetUint64(rng.Uint64() | 1))
	a.Rhs.ScalarMultiplicationBase(new(big.Int).SetUint64(rng.Uint64() | 1))
	return a
}

func TestAssemble_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 40; i++ {
		acc := randomAccumulator(rng)
		var pi common.Hash
		rng.Read(pi[:])
		k := 1 + rng.Intn(rollup.MaxChunks)

		v, err := Assemble(&acc, pi, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(v) != Len || Len != 45 {
			t.Fatalf("vector length = %d (Len %d), want 45", len(v), Len)
		}
		gotAcc, err := v.Accumulator()
		if err != nil {
			t.Fatal(err)
		}
		if !gotAcc.Equal(&acc) {
			t.Fatalf("accumulator round trip mismatch at %d", i)
		}
		gotPI, err := v.PublicInputHash()
		if err != nil || gotPI != pi {
			t.Fatalf("public input hash = %s, %v; want %s", gotPI, err, pi)
		}
		gotK, err := v.NumValidChunks()
		if err != nil || gotK != k {
			t.Fatalf("valid chunks = %d, %v; want %d", gotK, err, k)
		}
	}
}

func TestAssemble_Layout(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	acc := randomAccumulator(rng)
	pi := common.HexToHash("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	v, err := Assemble(&acc, pi, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 32; i++ {
		if got := v[PublicInputHashOffset+i].Uint64(); got != uint64(i+1) {
			t.Fatalf("hash element %d = %d, want %d", i, got, i+1)
		}
	}
	if v[NumValidChunksOffset].Uint64() != 3 {
		t.Fatalf("count element = %s, want 3", v[NumValidChunksOffset].String())
	}

	// lhs.x = Σ limb_i·2^(88i), little limb first.
	x := new(big.Int)
	for i := accumulator.Limbs - 1; i >= 0; i-- {
		x.Lsh(x, accumulator.Bits)
		x.Add(x, v[i].BigInt(new(big.Int)))
	}
	if x.Cmp(acc.Lhs.X.BigInt(new(big.Int))) != 0 {
		t.Fatal("lhs.x limbs do not reconstruct the coordinate")
	}
	if got := AccumulatorIndices(); len(got) != 12 || got[0] != 0 || got[11] != 11 {
		t.Fatalf("accumulator indices = %v", got)
	}
	if len(v.Bytes()) != Len*32 {
		t.Fatalf("encoded length = %d", len(v.Bytes()))
	}
}

func TestAssemble_Infinity(t *testing.T) {
	var acc accumulator.KzgAccumulator
	v, err := Assemble(&acc, common.Hash{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := v.Accumulator()
	if err != nil || !got.Lhs.IsInfinity() || !got.Rhs.IsInfinity() {
		t.Fatalf("infinity accumulator: %v %v", got, err)
	}
	_, _, g1, _ := bn254.Generators()
	if got.Lhs.Equal(&g1) {
		t.Fatal("infinity decoded as generator")
	}
}

func TestAssemble_Errors(t *testing.T) {
	var acc accumulator.KzgAccumulator
	for _, k := range []int{0, rollup.MaxChunks + 1} {
		if _, err := Assemble(&acc, common.Hash{}, k); !errors.Is(err, ErrChunkCount) {
			t.Errorf("k=%d: err = %v, want ErrChunkCount", k, err)
		}
	}
	v, _ := Assemble(&acc, common.Hash{}, 1)
	v[PublicInputHashOffset+5].SetUint64(256)
	if _, err := v.PublicInputHash(); !errors.Is(err, ErrByteRange) {
		t.Errorf("err = %v, want ErrByteRange", err)
	}
	if _, err := v[:Len-1].NumValidChunks(); !errors.Is(err, ErrLength) {
		t.Errorf("err = %v, want ErrLength", err)
	}
	v[NumValidChunksOffset].SetUint64(0)
	if _, err := v.NumValidChunks(); !errors.Is(err, ErrChunkCount) {
		t.Errorf("err = %v, want ErrChunkCount", err)
	}
}
