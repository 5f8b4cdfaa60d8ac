package obfuscate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSource = `
function square(x) {
  return x * x;
}
var result = square(4);
console.log(result);
`

func TestObfuscateProducesJSModule(t *testing.T) {
	cfg := DefaultConfig()
	out, err := Obfuscate([]byte(sampleSource), cfg)
	if err != nil {
		t.Fatalf("Obfuscate() error = %v", err)
	}
	if !strings.Contains(string(out), "module.exports") {
		t.Error("expected the emitted output to be a JS module")
	}
}

func TestObfuscateLossyPolicySucceeds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowerPolicy = LowerPolicyLossy
	_, err := Obfuscate([]byte(sampleSource), cfg)
	if err != nil {
		t.Fatalf("Obfuscate() with lossy policy error = %v", err)
	}
}

func TestObfuscateRejectsBadSyntax(t *testing.T) {
	_, err := Obfuscate([]byte("function ( { {{"), DefaultConfig())
	if err == nil {
		t.Fatal("expected a parse error for malformed source")
	}
}

func TestProcessFilesWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "a.js")
	if err := os.WriteFile(inputPath, []byte(sampleSource), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	outDir := filepath.Join(dir, "out")

	if err := ProcessFiles(context.Background(), []string{inputPath}, outDir, DefaultConfig()); err != nil {
		t.Fatalf("ProcessFiles() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "a.obf.js"))
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty obfuscated output")
	}

	cache, err := os.ReadFile(filepath.Join(outDir, "a.svmc"))
	if err != nil {
		t.Fatalf("reading cache artifact: %v", err)
	}
	if len(cache) == 0 {
		t.Error("expected non-empty .svmc cache artifact")
	}
}

func TestDefaultConfigTomlRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".shroudvm.toml")
	if err := os.WriteFile(path, []byte("entropy = 0.5\nvm-name = \"myvm\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Entropy != 0.5 || cfg.VMName != "myvm" {
		t.Errorf("cfg = %+v, want Entropy=0.5 VMName=myvm", cfg)
	}
	if !cfg.SelfDefending {
		t.Error("unset toml fields should keep DefaultConfig's values")
	}
}
