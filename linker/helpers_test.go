package linker

import (
	"math/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/log"
	"github.com/eth2030/aggregator/rollup"
)

func randomHash(rng *rand.Rand) common.Hash {
	var h common.Hash
	rng.Read(h[:])
	return h
}

func linkedChunks(rng *rand.Rand, k int) []rollup.ChunkHash {
	chunks := make([]rollup.ChunkHash, k)
	prev := randomHash(rng)
	for i := range chunks {
		chunks[i] = rollup.ChunkHash{
			ChainID:       534352,
			PrevStateRoot: prev,
			PostStateRoot: randomHash(rng),
			WithdrawRoot:  randomHash(rng),
			DataHash:      randomHash(rng),
		}
		prev = chunks[i].PostStateRoot
	}
	return chunks
}

// tamper edits the preimages of an honest batch before they are hashed.
type tamper struct {
	preimages func(pre [][]byte)
	// dataAbsorbed overrides the absorbed length of the data preimage.
	dataAbsorbed int
	// relink rewrites the batch preimage's data hash field to the digest
	// of the (possibly tampered) data preimage.
	relink bool
}

func testWitness(t testing.TB, seed int64, k int, tp *tamper) *Witness {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	batch, err := rollup.NewBatchHash(linkedChunks(rng, k))
	if err != nil {
		t.Fatalf("NewBatchHash: %v", err)
	}
	pre := batch.ExtractHashPreimages()
	if tp != nil && tp.preimages != nil {
		tp.preimages(pre)
	}

	var gamma fr.Element
	gamma.SetUint64(uint64(seed)*7919 + 3)

	traces := make([]*keccak.Trace, len(pre))
	build := func(i int) {
		absorbed := batch.AbsorbedLen(i)
		if i == rollup.BatchDataPreimageIndex && tp != nil && tp.dataAbsorbed > 0 {
			absorbed = tp.dataAbsorbed
		}
		tr, err := keccak.NewTrace(keccak.Input{Data: pre[i], Absorbed: absorbed}, gamma)
		if err != nil {
			t.Fatalf("NewTrace(%d): %v", i, err)
		}
		traces[i] = tr
	}
	build(rollup.BatchDataPreimageIndex)
	if tp != nil && tp.relink {
		h := traces[rollup.BatchDataPreimageIndex].Hash()
		copy(pre[rollup.BatchPreimageIndex][rollup.DataHashOffset:], h[:])
	}
	for i := range pre {
		if i != rollup.BatchDataPreimageIndex {
			build(i)
		}
	}
	return &Witness{Traces: traces, NumValidChunks: k, Challenge: gamma}
}

func chunkPre(pre [][]byte, i int) []byte {
	return pre[rollup.FirstChunkPreimageIndex+i]
}

// violations lists one tampering per rule together with the rule and chunk
// slot Check must report. All cases use k = 3.
var violations = []struct {
	name  string
	tp    tamper
	rule  Rule
	chunk int
}{
	{
		name:  "batch data hash field",
		tp:    tamper{preimages: func(pre [][]byte) { pre[rollup.BatchPreimageIndex][rollup.DataHashOffset] ^= 1 }},
		rule:  RuleDigestReuse,
		chunk: BatchLevel,
	},
	{
		name:  "batch prev root",
		tp:    tamper{preimages: func(pre [][]byte) { pre[rollup.BatchPreimageIndex][rollup.PrevStateRootOffset+5] ^= 1 }},
		rule:  RuleRootSharing,
		chunk: 0,
	},
	{
		name:  "batch withdraw root",
		tp:    tamper{preimages: func(pre [][]byte) { pre[rollup.BatchPreimageIndex][rollup.WithdrawRootOffset] ^= 0x80 }},
		rule:  RuleRootSharing,
		chunk: rollup.MaxChunks - 1,
	},
	{
		name:  "data hash over one extra chunk",
		tp:    tamper{dataAbsorbed: 4 * rollup.DigestLen, relink: true},
		rule:  RuleDataHashLength,
		chunk: BatchLevel,
	},
	{
		name:  "broken continuity",
		tp:    tamper{preimages: func(pre [][]byte) { chunkPre(pre, 1)[rollup.PrevStateRootOffset+31] ^= 1 }},
		rule:  RuleContinuity,
		chunk: 1,
	},
	{
		name:  "padding chain id",
		tp:    tamper{preimages: func(pre [][]byte) { chunkPre(pre, 5)[rollup.ChainIDOffset] ^= 1 }},
		rule:  RuleChainID,
		chunk: 5,
	},
	{
		name:  "padding prev root",
		tp:    tamper{preimages: func(pre [][]byte) { chunkPre(pre, 4)[rollup.PrevStateRootOffset] ^= 1 }},
		rule:  RulePaddingShape,
		chunk: 4,
	},
	{
		name:  "padding data hash",
		tp:    tamper{preimages: func(pre [][]byte) { chunkPre(pre, 6)[rollup.DataHashOffset+10] = 1 }},
		rule:  RulePaddingData,
		chunk: 6,
	},
	{
		name:  "chunk data hash",
		tp:    tamper{preimages: func(pre [][]byte) { chunkPre(pre, 2)[rollup.DataHashOffset] ^= 1 }},
		rule:  RuleDataHashComposition,
		chunk: 2,
	},
}

func newTestLinker() *Linker {
	return New(log.Discard())
}
