// Package obfuscate wires the whole pipeline — lower, cipher, program,
// emit, postprocess — into two entry points: Obfuscate for one source and
// ProcessFiles for a batch.
package obfuscate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LowerPolicy controls what the lowerer does when it encounters an AST
// node kind it has no emission rule for.
type LowerPolicy string

const (
	// LowerPolicyStrict fails the whole obfuscation on any unsupported
	// node.
	LowerPolicyStrict LowerPolicy = "strict"
	// LowerPolicyLossy skips the unsupported node (emitting UNDEFINED in
	// its place) and continues.
	LowerPolicyLossy LowerPolicy = "lossy"
)

// Config carries every obfuscation flag plus the ambient knobs a CLI
// config typically needs. It round-trips through github.com/BurntSushi/toml
// as a .shroudvm.toml project file sitting next to the sources it governs.
type Config struct {
	StringEncoding         bool    `toml:"string-encoding"`
	ControlFlowFlattening  bool    `toml:"control-flow-flattening"`
	DeadCodeInjection      bool    `toml:"dead-code-injection"`
	SelfDefending          bool    `toml:"self-defending"`
	DebugProtection        bool    `toml:"debug-protection"`
	Entropy                float64 `toml:"entropy"`
	TransformObjectKeys    bool    `toml:"transform-object-keys"`
	VMName                 string  `toml:"vm-name"`

	LowerPolicy LowerPolicy `toml:"lower-policy"`
	LogLevel    string      `toml:"log-level"`
}

// DefaultConfig turns every protection on by default, at entropy 0.9,
// strict lowering, and info-level logging.
func DefaultConfig() Config {
	return Config{
		StringEncoding:        true,
		ControlFlowFlattening: true,
		DeadCodeInjection:     true,
		SelfDefending:         true,
		DebugProtection:       true,
		Entropy:               0.9,
		TransformObjectKeys:   true,
		VMName:                "",
		LowerPolicy:           LowerPolicyStrict,
		LogLevel:              "info",
	}
}

// LoadConfig reads a .shroudvm.toml file, starting from DefaultConfig and
// letting the file override only the fields it sets — toml.Unmarshal
// leaves an already-populated struct field alone when the key is absent.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// FindAndLoadConfig walks up from startDir looking for .shroudvm.toml.
// It returns DefaultConfig, not an error,
// if no project file is found — an obfuscation run with no project file
// is a normal use of the CLI's explicit flags, not a failure.
func FindAndLoadConfig(startDir string) (Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return Config{}, err
	}
	for {
		path := filepath.Join(dir, ".shroudvm.toml")
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(dir + string(filepath.Separator) + ".shroudvm.toml")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return DefaultConfig(), nil
		}
		dir = parent
	}
}
