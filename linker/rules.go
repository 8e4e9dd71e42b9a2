// Package linker enforces the hash-chain consistency of a batch: that the
// keccak preimages of the batch, its data hash and every chunk slot agree
// with one another. Every rule exists twice, as a value check over the
// keccak table assignment (Linker.Check) and as constraints of the
// consistency circuit (Circuit) the proving backend proves.
package linker

import (
	"errors"
	"fmt"

	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/rollup"
)

// Rule identifies a consistency rule.
type Rule uint8

const (
	// RuleDigestReuse: the batch preimage's data hash field is the digest of
	// the data preimage.
	RuleDigestReuse Rule = iota + 1
	// RuleRootSharing: the batch preimage's prev root is the first chunk's,
	// its post and withdraw roots are the last slot's.
	RuleRootSharing
	// RuleDataHashLength: the data digest covers exactly 32 bytes per real
	// chunk.
	RuleDataHashLength
	// RuleContinuity: each real chunk starts at its predecessor's post root.
	RuleContinuity
	// RuleChainID: every slot carries the batch chain id.
	RuleChainID
	// RulePaddingShape: padding slots have prev root == post root.
	RulePaddingShape
	// RulePaddingData: padding slots have a zero data hash.
	RulePaddingData
	// RuleDataHashComposition: the data preimage is the concatenation of
	// the real chunks' data hashes.
	RuleDataHashComposition
)

var ruleNames = map[Rule]string{
	RuleDigestReuse:         "digest reuse",
	RuleRootSharing:         "root sharing",
	RuleDataHashLength:      "data hash length",
	RuleContinuity:          "continuity",
	RuleChainID:             "chain id",
	RulePaddingShape:        "padding shape",
	RulePaddingData:         "padding data",
	RuleDataHashComposition: "data hash composition",
}

func (r Rule) String() string {
	if n, ok := ruleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("rule(%d)", uint8(r))
}

var (
	ErrBatchConsistencyViolation = errors.New("linker: batch consistency violation")
	ErrWitnessShape              = errors.New("linker: malformed witness")
)

// BatchLevel is the ViolationError chunk index of rules that concern the
// batch preimages rather than a chunk slot.
const BatchLevel = -1

// ViolationError reports which rule failed and at which chunk slot.
type ViolationError struct {
	Rule  Rule
	Chunk int
}

func (e *ViolationError) Error() string {
	if e.Chunk == BatchLevel {
		return fmt.Sprintf("%v: rule %d (%v)", ErrBatchConsistencyViolation, e.Rule, e.Rule)
	}
	return fmt.Sprintf("%v: rule %d (%v) at chunk %d", ErrBatchConsistencyViolation, e.Rule, e.Rule, e.Chunk)
}

func (e *ViolationError) Unwrap() error { return ErrBatchConsistencyViolation }

// Bands maps a valid-chunk count k to the absorption block at which the data
// digest of 32·k bytes is sampled, ⌈32k/RateBytes⌉, through an explicit
// threshold table derived for a chunk capacity.
type Bands struct {
	// thresholds[b-1] is the largest k whose data fits in b blocks.
	thresholds []int
}

// NewBands derives the band table for maxChunks slots.
func NewBands(maxChunks int) Bands {
	n := (rollup.DigestLen*maxChunks + keccak.RateBytes - 1) / keccak.RateBytes
	t := make([]int, n)
	for b := 1; b <= n; b++ {
		t[b-1] = min(b*keccak.RateBytes/rollup.DigestLen, maxChunks)
	}
	return Bands{thresholds: t}
}

// Len returns the number of bands.
func (b Bands) Len() int { return len(b.thresholds) }

// Lookup returns the 1-based block index for k, or 0 when k is outside
// [1, maxChunks].
func (b Bands) Lookup(k int) int {
	if k < 1 {
		return 0
	}
	for i, t := range b.thresholds {
		if k <= t {
			return i + 1
		}
	}
	return 0
}
