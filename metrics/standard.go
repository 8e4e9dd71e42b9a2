package metrics

// Pre-defined aggregator metrics. All live in DefaultRegistry.

var (
	// ---- Batch pipeline ----

	// BatchesAggregated counts batches that produced an attestation.
	BatchesAggregated = DefaultRegistry.Counter("aggregator.batches")
	// BatchesRejected counts batches aborted by any error.
	BatchesRejected = DefaultRegistry.Counter("aggregator.rejected")
	// ValidChunks tracks the valid-chunk count of the last aggregated batch.
	ValidChunks = DefaultRegistry.Gauge("aggregator.valid_chunks")
	// AggregateTime records end-to-end aggregation latency in milliseconds.
	AggregateTime = DefaultRegistry.Histogram("aggregator.aggregate_ms")

	// ---- Hash-chain linking ----

	// KeccakTraces counts preimages traced by the keccak table.
	KeccakTraces = DefaultRegistry.Counter("keccak.traces")
	// ConsistencyViolations counts linker rule violations.
	ConsistencyViolations = DefaultRegistry.Counter("linker.violations")

	// ---- Accumulation ----

	// ChildProofsFolded counts child accumulators folded.
	ChildProofsFolded = DefaultRegistry.Counter("folder.children")
	// ChildProofsRejected counts child proofs that failed parsing or checks.
	ChildProofsRejected = DefaultRegistry.Counter("folder.rejected")
	// FoldTime records folding latency in milliseconds.
	FoldTime = DefaultRegistry.Histogram("folder.fold_ms")

	// ---- Proving backend ----

	// ProveTime records backend proving latency in milliseconds.
	ProveTime = DefaultRegistry.Histogram("prover.prove_ms")
	// ProofsVerified counts backend proofs that verified.
	ProofsVerified = DefaultRegistry.Counter("prover.verified")
)
