package emit

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanta-works/shroudvm/cipher"
	"github.com/vanta-works/shroudvm/constpool"
	"github.com/vanta-works/shroudvm/ident"
	"github.com/vanta-works/shroudvm/lower"
	"github.com/vanta-works/shroudvm/parser"
	"github.com/vanta-works/shroudvm/program"
)

func buildProgram(t *testing.T) *program.Program {
	t.Helper()
	keys, err := cipher.DeriveKeys([]byte("emit package test seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	pool := constpool.New()
	pool.InsertString("hello")
	pool.InsertIdentifier("x")

	encodedPool, err := cipher.EncodePool(pool, keys.ChaChaKey, keys.ChaChaNonce)
	if err != nil {
		t.Fatalf("EncodePool() error = %v", err)
	}

	code := []byte{0x01, 0x00, 0x06}
	ciphertext, cipherID, originalLen, err := cipher.EncodeBytecode(code, keys, false, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}

	p, err := program.Seal(ciphertext, keys, cipherID, originalLen, encodedPool)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return p
}

func TestEmitProducesModule(t *testing.T) {
	p := buildProgram(t)
	e, err := NewEmitter(ident.NewNameManager(8))
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}
	out, err := e.Emit(p, Config{VMName: "testvm"})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	for _, want := range []string{"module.exports", "createDecipheriv", "aes-256-cbc"} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted source missing %q", want)
		}
	}
}

func TestEmitDebugProtectionAddsDigestCheck(t *testing.T) {
	p := buildProgram(t)
	e, err := NewEmitter(ident.NewNameManager(8))
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}
	out, err := e.Emit(p, Config{DebugProtection: true})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if !strings.Contains(out, "SecurityViolation") {
		t.Error("expected a SecurityViolation check when DebugProtection is set")
	}
	if !strings.Contains(out, "createHash('sha256')") {
		t.Error("expected a sha256 digest check when DebugProtection is set")
	}
}

func TestEmitTwiceProducesDistinctNames(t *testing.T) {
	p := buildProgram(t)
	e1, err := NewEmitter(ident.NewNameManager(8))
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}
	out1, err := e1.Emit(p, Config{})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	e2, err := NewEmitter(ident.NewNameManager(8))
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}
	out2, err := e2.Emit(p, Config{})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if out1 == out2 {
		t.Error("two emissions of the same program should mint distinct internal names")
	}
}

// renderSource runs source through parse->lower->seal->emit exactly as
// obfuscate.obfuscateSealed does, returning the standalone JS module
// emit.Emit produces. Encryption keys are derived from a fixed seed so
// failures reproduce deterministically.
func renderSource(t *testing.T, source string) string {
	t.Helper()
	prog, err := parser.ParseSource(source)
	if err != nil {
		t.Fatalf("ParseSource(%q) error = %v", source, err)
	}
	lowered, err := lower.New(lower.PolicyStrict).Lower(prog)
	if err != nil {
		t.Fatalf("Lower(%q) error = %v", source, err)
	}
	keys, err := cipher.DeriveKeys([]byte("emit package node-execution test seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	ciphertext, cipherID, originalLen, err := cipher.EncodeBytecode(lowered.Code, keys, false, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}
	sealed, err := program.Seal(ciphertext, keys, cipherID, originalLen, lowered.Pool)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	e, err := NewEmitter(ident.NewNameManager(8))
	if err != nil {
		t.Fatalf("NewEmitter() error = %v", err)
	}
	out, err := e.Emit(sealed, Config{VMName: "nodetest"})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return out
}

// runNode writes js to a temp file and executes it under node, returning
// trimmed stdout. It skips the test if no node binary is on PATH.
func runNode(t *testing.T, js string) string {
	t.Helper()
	nodeBin, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not found on PATH, skipping node-execution test")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "module.js")
	if err := os.WriteFile(path, []byte(js), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(nodeBin, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("node %s failed: %v\nstderr: %s", path, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String())
}

func TestEmitExecutesClosureCallUnderNode(t *testing.T) {
	js := renderSource(t, "function f(x){return x*x;} console.log(f(4));")
	if got, want := runNode(t, js), "16"; got != want {
		t.Errorf("node output = %q, want %q", got, want)
	}
}

func TestEmitExecutesNestedClosureCallUnderNode(t *testing.T) {
	js := renderSource(t, `
		function outer(x) {
			function inner(y) { return x + y; }
			return inner(10);
		}
		console.log(outer(5));
	`)
	if got, want := runNode(t, js), "15"; got != want {
		t.Errorf("node output = %q, want %q", got, want)
	}
}

func TestEmitBindsThisOnConstructorCallUnderNode(t *testing.T) {
	js := renderSource(t, `
		function Counter(start) { this.value = start; }
		var c = new Counter(5);
		console.log(c.value);
	`)
	if got, want := runNode(t, js), "5"; got != want {
		t.Errorf("node output = %q, want %q", got, want)
	}
}

func TestEmitConstructorReturnValueOverridesInstanceUnderNode(t *testing.T) {
	js := renderSource(t, `
		function Weird() {
			this.value = 1;
			var replacement = {};
			replacement.value = 99;
			return replacement;
		}
		var w = new Weird();
		console.log(w.value);
	`)
	if got, want := runNode(t, js), "99"; got != want {
		t.Errorf("node output = %q, want %q", got, want)
	}
}
