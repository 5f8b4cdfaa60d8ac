package program

import (
	"testing"

	"github.com/vanta-works/shroudvm/bytecode"
	"github.com/vanta-works/shroudvm/cipher"
	"github.com/vanta-works/shroudvm/constpool"
)

func testKeys(t *testing.T) cipher.Keys {
	t.Helper()
	keys, err := cipher.DeriveKeys([]byte("program package test seed"))
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	return keys
}

func TestSealUnpoolRoundTrip(t *testing.T) {
	keys := testKeys(t)
	pool := constpool.New()
	pool.InsertString("hello")
	pool.InsertIdentifier("x")
	pool.InsertPrimitive(3.5)
	pool.InsertPrimitive(true)
	pool.InsertOffset(42)

	code := []byte{0x01, 0x02, 0x03}
	ciphertext, cipherID, originalLen, err := cipher.EncodeBytecode(code, keys, false, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}

	p, err := Seal(ciphertext, keys, cipherID, originalLen, pool)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	decrypted, err := p.Decrypt()
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(decrypted) != string(code) {
		t.Errorf("Decrypt() = %v, want %v", decrypted, code)
	}

	restored, err := p.Unpool()
	if err != nil {
		t.Fatalf("Unpool() error = %v", err)
	}
	if restored.Len() != pool.Len() {
		t.Fatalf("restored pool has %d entries, want %d", restored.Len(), pool.Len())
	}
	e, _ := restored.Get(0)
	if e.Value.(string) != "hello" {
		t.Errorf("entry 0 = %v, want %q", e.Value, "hello")
	}
	e, _ = restored.Get(4)
	if e.Value.(int) != 42 {
		t.Errorf("offset entry = %v (%T), want int 42", e.Value, e.Value)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	keys := testKeys(t)
	pool := constpool.New()
	pool.InsertString("payload")

	ciphertext, cipherID, originalLen, err := cipher.EncodeBytecode([]byte("code"), keys, false, false, 0)
	if err != nil {
		t.Fatalf("EncodeBytecode() error = %v", err)
	}
	p, err := Seal(ciphertext, keys, cipherID, originalLen, pool)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	restored, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if restored.CipherID != p.CipherID || restored.OriginalLength != p.OriginalLength {
		t.Errorf("restored metadata mismatch: %+v vs %+v", restored, p)
	}
	decrypted, err := restored.Decrypt()
	if err != nil {
		t.Fatalf("Decrypt() on restored Program error = %v", err)
	}
	if string(decrypted) != "code" {
		t.Errorf("Decrypt() on restored Program = %q, want %q", decrypted, "code")
	}
}

func TestNestedFunctionBodyRoundTrip(t *testing.T) {
	nestedPool := constpool.New()
	nestedPool.InsertIdentifier("x")
	nested := bytecode.NewProgram([]byte{0x10, 0x20}, nestedPool)

	outerPool := constpool.New()
	outerPool.InsertFunctionBody(nested)

	entries, err := flattenPool(outerPool)
	if err != nil {
		t.Fatalf("flattenPool() error = %v", err)
	}
	if entries[0].Kind != kindFunctionBody {
		t.Fatalf("entry kind = %q, want %q", entries[0].Kind, kindFunctionBody)
	}

	v, err := unflattenValue(entries[0])
	if err != nil {
		t.Fatalf("unflattenValue() error = %v", err)
	}
	body, ok := v.(*bytecode.Program)
	if !ok {
		t.Fatalf("unflattened value has type %T, want *bytecode.Program", v)
	}
	if string(body.Code) != string(nested.Code) {
		t.Errorf("nested body code = %v, want %v", body.Code, nested.Code)
	}
	e, err := body.Pool.Get(0)
	if err != nil {
		t.Fatalf("nested Pool.Get(0) error = %v", err)
	}
	if e.Value.(string) != "x" {
		t.Errorf("nested body pool entry = %v, want %q", e.Value, "x")
	}
}

func TestUnpoolRejectsUnknownKind(t *testing.T) {
	_, err := unflattenValue(PoolEntry{Kind: "not-a-real-kind"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized pool entry kind")
	}
}
