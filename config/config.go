// Package config holds the aggregator configuration and its YAML loader.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eth2030/aggregator/accumulator"
	"github.com/eth2030/aggregator/crypto/keccak"
	"github.com/eth2030/aggregator/log"
)

// Supported proving backends.
const (
	BackendGroth16 = "groth16"
	BackendSolver  = "solver"
)

// maxLogDegree bounds the keccak table size.
const maxLogDegree = 26

// Config is the full aggregator configuration.
type Config struct {
	Keccak KeccakConfig `yaml:"keccak"`
	Fold   FoldConfig   `yaml:"fold"`
	Prover ProverConfig `yaml:"prover"`
	Log    LogConfig    `yaml:"log"`
}

// KeccakConfig sizes the keccak table.
type KeccakConfig struct {
	RowsPerRound int `yaml:"rows_per_round"`
	LogDegree    int `yaml:"log_degree"`
	Workers      int `yaml:"workers"`
}

// FoldConfig controls child proof folding.
type FoldConfig struct {
	Workers int  `yaml:"workers"`
	Blind   bool `yaml:"blind"`
}

// ProverConfig selects the proving backend.
type ProverConfig struct {
	Backend string `yaml:"backend"`
	// Verbose forwards the constraint system compiler's log output.
	Verbose bool `yaml:"verbose"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output receives log records. Nil means stderr.
	Output io.Writer `yaml:"-"`
}

// Default returns a Config with the default table size and groth16 proving.
func Default() Config {
	kc := keccak.DefaultConfig()
	return Config{
		Keccak: KeccakConfig{RowsPerRound: kc.RowsPerRound, LogDegree: kc.LogDegree},
		Prover: ProverConfig{Backend: BackendGroth16},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Keccak.RowsPerRound < keccak.WordBytes {
		return fmt.Errorf("config: rows_per_round must be at least %d, got %d", keccak.WordBytes, c.Keccak.RowsPerRound)
	}
	if c.Keccak.LogDegree < 1 || c.Keccak.LogDegree > maxLogDegree {
		return fmt.Errorf("config: invalid log_degree: %d", c.Keccak.LogDegree)
	}
	if c.Keccak.Workers < 0 {
		return fmt.Errorf("config: invalid keccak workers: %d", c.Keccak.Workers)
	}
	if c.Fold.Workers < 0 {
		return fmt.Errorf("config: invalid fold workers: %d", c.Fold.Workers)
	}
	switch c.Prover.Backend {
	case BackendGroth16, BackendSolver:
	default:
		return fmt.Errorf("config: unknown prover backend %q", c.Prover.Backend)
	}
	if !log.ValidLevel(c.Log.Level) {
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// KeccakTable returns the keccak table sizing.
func (c *Config) KeccakTable() keccak.Config {
	return keccak.Config{
		RowsPerRound: c.Keccak.RowsPerRound,
		LogDegree:    c.Keccak.LogDegree,
		Workers:      c.Keccak.Workers,
	}
}

// Folder returns the folding configuration.
func (c *Config) Folder() accumulator.Config {
	return accumulator.Config{Workers: c.Fold.Workers, Blind: c.Fold.Blind}
}

// Logger builds a logger at the configured level and format.
func (c *Config) Logger() *log.Logger {
	var w io.Writer = os.Stderr
	if c.Log.Output != nil {
		w = c.Log.Output
	}
	return log.NewWriter(w, c.Log.Level, c.Log.Format)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}
