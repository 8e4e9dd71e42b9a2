package metrics

import (
	"strings"
	"testing"
)

func TestRegistry_WritePrometheus(t *testing.T) {
	r := NewRegistry()
	r.Counter("linker.violations").Add(3)
	r.Gauge("aggregator.valid_chunks").Set(7)
	h := r.Histogram("folder.fold_ms")
	h.Observe(2)
	h.Observe(4.5)
	r.Histogram("prover.prove_ms")

	var b strings.Builder
	if err := r.WritePrometheus(&b, "agg"); err != nil {
		t.Fatal(err)
	}
	want := `# TYPE agg_linker_violations counter
agg_linker_violations 3
# TYPE agg_aggregator_valid_chunks gauge
agg_aggregator_valid_chunks 7
# TYPE agg_folder_fold_ms summary
agg_folder_fold_ms_count 2
agg_folder_fold_ms_sum 6.5
agg_folder_fold_ms_min 2
agg_folder_fold_ms_max 4.5
# TYPE agg_prover_prove_ms summary
agg_prover_prove_ms_count 0
agg_prover_prove_ms_sum 0
`
	if got := b.String(); got != want {
		t.Errorf("exposition mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRegistry_WritePrometheus_NoNamespace(t *testing.T) {
	r := NewRegistry()
	r.Counter("a.b").Inc()
	var b strings.Builder
	if err := r.WritePrometheus(&b, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "\na_b 1\n") {
		t.Errorf("output = %q", b.String())
	}
}
