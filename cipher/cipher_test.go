package cipher

import (
	"bytes"
	"testing"

	"github.com/vanta-works/shroudvm/constpool"
)

func testKeys(t *testing.T) Keys {
	t.Helper()
	keys, err := DeriveKeys([]byte("a fixed test seed, not for production use"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	return keys
}

func TestDeriveKeysDeterministic(t *testing.T) {
	a, err := DeriveKeys([]byte("seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	b, err := DeriveKeys([]byte("seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	if a != b {
		t.Error("DeriveKeys should be deterministic for a fixed seed")
	}
	c, err := DeriveKeys([]byte("different seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	if a == c {
		t.Error("DeriveKeys should diverge for different seeds")
	}
}

func TestEncodeDecodePoolRoundTrip(t *testing.T) {
	keys := testKeys(t)
	pool := constpool.New()
	s1, _ := pool.InsertString("hello world")
	s2, _ := pool.InsertString("")
	n1, _ := pool.InsertPrimitive(42.0)
	id1, _ := pool.InsertIdentifier("x")

	encoded, err := EncodePool(pool, keys.ChaChaKey, keys.ChaChaNonce)
	if err != nil {
		t.Fatalf("EncodePool() error = %v", err)
	}
	entry, err := encoded.Get(s1)
	if err != nil {
		t.Fatalf("Get(s1) error = %v", err)
	}
	wrapped, ok := entry.Value.(EncodedString)
	if !ok {
		t.Fatalf("encoded string entry has type %T, want EncodedString", entry.Value)
	}
	if wrapped.Value == "hello world" {
		t.Error("EncodePool should not leave the plaintext string untouched")
	}

	decoded, err := DecodePool(encoded, keys.ChaChaKey, keys.ChaChaNonce)
	if err != nil {
		t.Fatalf("DecodePool() error = %v", err)
	}
	checkString := func(idx int, want string) {
		e, err := decoded.Get(idx)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", idx, err)
		}
		if e.Value.(string) != want {
			t.Errorf("decoded[%d] = %q, want %q", idx, e.Value, want)
		}
	}
	checkString(s1, "hello world")
	checkString(s2, "")

	e, _ := decoded.Get(n1)
	if e.Value.(float64) != 42.0 {
		t.Errorf("decoded numeric entry = %v, want 42.0", e.Value)
	}
	e, _ = decoded.Get(id1)
	if e.Value.(string) != "x" {
		t.Errorf("decoded identifier entry = %v, want %q", e.Value, "x")
	}
}

func TestEncodePoolIdempotent(t *testing.T) {
	keys := testKeys(t)
	pool := constpool.New()
	pool.InsertString("once")

	once, err := EncodePool(pool, keys.ChaChaKey, keys.ChaChaNonce)
	if err != nil {
		t.Fatalf("EncodePool() error = %v", err)
	}
	twice, err := EncodePool(once, keys.ChaChaKey, keys.ChaChaNonce)
	if err != nil {
		t.Fatalf("EncodePool() error = %v", err)
	}
	e1, _ := once.Get(0)
	e2, _ := twice.Get(0)
	if e1.Value.(EncodedString).Value != e2.Value.(EncodedString).Value {
		t.Error("re-encoding an already-encoded pool should be a no-op")
	}
}

func TestEncodeDecodeBytecodeAESCBC(t *testing.T) {
	keys := testKeys(t)
	code := []byte{0x01, 0x00, 0x06, 0x01, 0x02, 0x03, 0xAA, 0xBB}

	ciphertext, cipherID, originalLen, err := EncodeBytecode(code, keys, false, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}
	if cipherID != CipherAESCBC {
		t.Errorf("cipherID = %q, want %q", cipherID, CipherAESCBC)
	}
	if bytes.Equal(ciphertext, code) {
		t.Error("ciphertext should not equal plaintext")
	}

	decoded, err := DecodeBytecode(ciphertext, keys, cipherID, originalLen)
	if err != nil {
		t.Fatalf("DecodeBytecode() error = %v", err)
	}
	if !bytes.Equal(decoded, code) {
		t.Errorf("decoded = %v, want %v", decoded, code)
	}
}

func TestEncodeDecodeBytecodeXORFallback(t *testing.T) {
	keys := testKeys(t)
	code := []byte("some bytecode payload")

	ciphertext, cipherID, originalLen, err := EncodeBytecode(code, keys, true, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}
	if cipherID != CipherXORFallback {
		t.Errorf("cipherID = %q, want %q", cipherID, CipherXORFallback)
	}
	decoded, err := DecodeBytecode(ciphertext, keys, cipherID, originalLen)
	if err != nil {
		t.Fatalf("DecodeBytecode() error = %v", err)
	}
	if !bytes.Equal(decoded, code) {
		t.Errorf("decoded = %q, want %q", decoded, code)
	}
}

func TestEncodeBytecodeDeadCodeInjectionStrippable(t *testing.T) {
	keys := testKeys(t)
	code := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 20)

	ciphertext, cipherID, originalLen, err := EncodeBytecode(code, keys, false, true, 1.0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}
	if len(ciphertext) <= originalLen {
		t.Error("dead-code injection should have made the ciphertext longer than originalLen")
	}
	decoded, err := DecodeBytecode(ciphertext, keys, cipherID, originalLen)
	if err != nil {
		t.Fatalf("DecodeBytecode() error = %v", err)
	}
	if !bytes.Equal(decoded, code) {
		t.Error("decoded bytecode should match the original after stripping dead-code padding")
	}
}
