package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Keccak.RowsPerRound != 12 {
		t.Errorf("Keccak.RowsPerRound = %d, want 12", cfg.Keccak.RowsPerRound)
	}
	if cfg.Keccak.LogDegree != 19 {
		t.Errorf("Keccak.LogDegree = %d, want 19", cfg.Keccak.LogDegree)
	}
	if cfg.Fold.Blind {
		t.Error("Fold.Blind should be false by default")
	}
	if cfg.Prover.Backend != BackendGroth16 {
		t.Errorf("Prover.Backend = %q, want groth16", cfg.Prover.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParse(t *testing.T) {
	input := `
keccak:
  rows_per_round: 9
  log_degree: 16
  workers: 4
fold:
  blind: true
prover:
  backend: solver
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Keccak.RowsPerRound != 9 || cfg.Keccak.LogDegree != 16 || cfg.Keccak.Workers != 4 {
		t.Errorf("Keccak = %+v", cfg.Keccak)
	}
	if !cfg.Fold.Blind {
		t.Error("Fold.Blind = false, want true")
	}
	if cfg.Prover.Backend != BackendSolver {
		t.Errorf("Prover.Backend = %q, want solver", cfg.Prover.Backend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	kc := cfg.KeccakTable()
	if kc.RowsPerRound != 9 || kc.LogDegree != 16 || kc.Workers != 4 {
		t.Errorf("KeccakTable = %+v", kc)
	}
	if fc := cfg.Folder(); !fc.Blind {
		t.Errorf("Folder = %+v", fc)
	}
}

func TestParse_Partial(t *testing.T) {
	cfg, err := Parse([]byte("keccak:\n  rows_per_round: 24\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Keccak.RowsPerRound != 24 {
		t.Errorf("RowsPerRound = %d, want 24", cfg.Keccak.RowsPerRound)
	}
	if cfg.Keccak.LogDegree != 19 {
		t.Errorf("LogDegree = %d, want default 19", cfg.Keccak.LogDegree)
	}

	for _, in := range []string{"", "# nothing here\n"} {
		if _, err := Parse([]byte(in)); err != nil {
			t.Errorf("Parse(%q): %v", in, err)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"keccak:\n  rows_per_round: 7\n", "rows_per_round"},
		{"keccak:\n  log_degree: 0\n", "log_degree"},
		{"fold:\n  workers: -1\n", "fold workers"},
		{"prover:\n  backend: plonk\n", "backend"},
		{"log:\n  level: loud\n", "log level"},
		{"log:\n  format: xml\n", "log format"},
		{"keccak:\n  rows: 12\n", "rows"},
		{"keccak: [1, 2\n", "config:"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.input))
		if err == nil {
			t.Errorf("Parse(%q): expected error", tt.input)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Parse(%q) = %v, want mention of %q", tt.input, err, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregator.yaml")
	if err := os.WriteFile(path, []byte("prover:\n  backend: solver\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prover.Backend != BackendSolver {
		t.Errorf("Prover.Backend = %q, want solver", cfg.Prover.Backend)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
	if _, err := Load(""); err == nil {
		t.Error("Load of an empty path should fail")
	}
}
