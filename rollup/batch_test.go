package rollup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// referencePublicInputHash recomputes the batch public input hash directly
// from the real chunks with go-ethereum's keccak.
func referencePublicInputHash(real []ChunkHash) (common.Hash, common.Hash) {
	var data []byte
	for _, c := range real {
		data = append(data, c.DataHash[:]...)
	}
	dataHash := gethcrypto.Keccak256Hash(data)

	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], real[0].ChainID)
	last := real[len(real)-1]
	pi := gethcrypto.Keccak256Hash(chain[:], real[0].PrevStateRoot[:], last.PostStateRoot[:], last.WithdrawRoot[:], dataHash[:])
	return dataHash, pi
}

func TestNewBatchHash_AllCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	for k := 1; k <= MaxChunks; k++ {
		real := linkedChunks(rng, 534352, k)
		b, err := NewBatchHash(real)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		wantData, wantPI := referencePublicInputHash(real)
		if b.DataHash != wantData {
			t.Errorf("k=%d: data hash = %s, want %s", k, b.DataHash, wantData)
		}
		if b.PublicInputHash != wantPI {
			t.Errorf("k=%d: public input hash = %s, want %s", k, b.PublicInputHash, wantPI)
		}
		if b.NumValidChunks != k {
			t.Errorf("k=%d: NumValidChunks = %d", k, b.NumValidChunks)
		}
		for i := k; i < MaxChunks; i++ {
			c := b.Chunks[i].Chunk
			if c.PrevStateRoot != c.PostStateRoot || c.DataHash != (common.Hash{}) {
				t.Errorf("k=%d: slot %d is not padding: %+v", k, i, c)
			}
		}
	}
}

func TestNewBatchHash_BrokenLinkage(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	real := linkedChunks(rng, 1, MaxChunks)
	for idx := 1; idx < MaxChunks; idx++ {
		corrupt := append([]ChunkHash(nil), real...)
		corrupt[idx].PrevStateRoot[0] ^= 0x01

		_, err := NewBatchHash(corrupt)
		if !errors.Is(err, ErrBrokenChunkLinkage) {
			t.Fatalf("corrupt index %d: err = %v, want ErrBrokenChunkLinkage", idx, err)
		}
		var ce *ChunkError
		if !errors.As(err, &ce) || ce.Index != idx {
			t.Fatalf("corrupt index %d: error %v does not carry the index", idx, err)
		}
	}
}

func TestNewBatchHash_ChainIDMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	real := linkedChunks(rng, 1, 3)
	real[2].ChainID = 2

	_, err := NewBatchHash(real)
	if !errors.Is(err, ErrChainIDMismatch) {
		t.Fatalf("err = %v, want ErrChainIDMismatch", err)
	}
	var ce *ChunkError
	if !errors.As(err, &ce) || ce.Index != 2 {
		t.Fatalf("error %v does not carry index 2", err)
	}
}

func TestNewBatchHash_InvalidCount(t *testing.T) {
	if _, err := NewBatchHash(nil); !errors.Is(err, ErrInvalidChunkCount) {
		t.Fatalf("empty: err = %v, want ErrInvalidChunkCount", err)
	}
	rng := rand.New(rand.NewSource(13))
	if _, err := NewBatchHash(linkedChunks(rng, 1, MaxChunks+1)); !errors.Is(err, ErrInvalidChunkCount) {
		t.Fatalf("too many: err = %v, want ErrInvalidChunkCount", err)
	}
}

func TestExtractHashPreimages(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	real := linkedChunks(rng, 9, 4)
	b, err := NewBatchHash(real)
	if err != nil {
		t.Fatal(err)
	}
	pre := b.ExtractHashPreimages()
	if len(pre) != NumPreimages {
		t.Fatalf("preimage count = %d, want %d", len(pre), NumPreimages)
	}
	if got := gethcrypto.Keccak256Hash(pre[BatchPreimageIndex]); got != b.PublicInputHash {
		t.Fatalf("keccak(preimage[0]) = %s, want %s", got, b.PublicInputHash)
	}
	if len(pre[BatchDataPreimageIndex]) != BatchDataPreimageLen {
		t.Fatalf("data preimage length = %d, want %d", len(pre[1]), BatchDataPreimageLen)
	}
	absorbed := pre[BatchDataPreimageIndex][:b.AbsorbedLen(BatchDataPreimageIndex)]
	if got := gethcrypto.Keccak256Hash(absorbed); got != b.DataHash {
		t.Fatalf("keccak(absorbed data) = %s, want %s", got, b.DataHash)
	}
	if tail := pre[BatchDataPreimageIndex][32*4:]; !bytes.Equal(tail, make([]byte, len(tail))) {
		t.Fatal("padding data hashes are not zero")
	}
	hashes := b.ChunkPublicInputHashes()
	for i := 0; i < MaxChunks; i++ {
		p := pre[FirstChunkPreimageIndex+i]
		if len(p) != ChunkPreimageLen {
			t.Fatalf("chunk preimage %d length = %d", i, len(p))
		}
		if got := gethcrypto.Keccak256Hash(p); got != hashes[i] {
			t.Fatalf("chunk %d hash = %s, want %s", i, got, hashes[i])
		}
		if b.AbsorbedLen(FirstChunkPreimageIndex+i) != ChunkPreimageLen {
			t.Fatalf("chunk %d absorbed length = %d", i, b.AbsorbedLen(FirstChunkPreimageIndex+i))
		}
	}
	if b.AbsorbedLen(NumPreimages) != 0 {
		t.Fatal("out-of-range preimage has non-zero absorbed length")
	}
}

func TestBatchHash_ConcreteScenario(t *testing.T) {
	fill := func(b byte) common.Hash { return common.BytesToHash(bytes.Repeat([]byte{b}, 32)) }
	a := ChunkHash{ChainID: 1, PrevStateRoot: fill(0x00), PostStateRoot: fill(0x11), WithdrawRoot: fill(0x22), DataHash: fill(0x33)}
	bb := ChunkHash{ChainID: 1, PrevStateRoot: fill(0x11), PostStateRoot: fill(0x44), WithdrawRoot: fill(0x55), DataHash: fill(0x66)}

	batch, err := NewBatchHash([]ChunkHash{a, bb})
	if err != nil {
		t.Fatal(err)
	}
	wantData := gethcrypto.Keccak256Hash(fill(0x33).Bytes(), fill(0x66).Bytes())
	if batch.DataHash != wantData {
		t.Fatalf("data hash = %s, want %s", batch.DataHash, wantData)
	}
	chain := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	wantPI := gethcrypto.Keccak256Hash(chain, fill(0x00).Bytes(), fill(0x44).Bytes(), fill(0x55).Bytes(), wantData.Bytes())
	if batch.PublicInputHash != wantPI {
		t.Fatalf("public input hash = %s, want %s", batch.PublicInputHash, wantPI)
	}
	if batch.NumValidChunks != 2 {
		t.Fatalf("NumValidChunks = %d, want 2", batch.NumValidChunks)
	}
	for i := 2; i < MaxChunks; i++ {
		s := batch.Chunks[i]
		if s.Kind != SlotPadding || s.Chunk.PrevStateRoot != fill(0x44) || s.Chunk.PostStateRoot != fill(0x44) || s.Chunk.DataHash != (common.Hash{}) {
			t.Fatalf("slot %d = %+v, want padding at 0x44..", i, s)
		}
	}

	// The full-width data preimage carries the padding zeros.
	wantPre := append(append(fill(0x33).Bytes(), fill(0x66).Bytes()...), make([]byte, 32*(MaxChunks-2))...)
	if got := batch.ExtractHashPreimages()[BatchDataPreimageIndex]; !bytes.Equal(got, wantPre) {
		t.Fatalf("data preimage = %x, want %x", got, wantPre)
	}

	pi := batch.PublicInput()
	if pi.PrevStateRoot != fill(0x00) || pi.PostStateRoot != fill(0x44) || pi.WithdrawRoot != fill(0x55) || pi.DataHash != wantData {
		t.Fatalf("public input = %+v", pi)
	}
	if got := batch.RealChunks(); len(got) != 2 || got[0] != a || got[1] != bb {
		t.Fatalf("real chunks = %+v", got)
	}
}
