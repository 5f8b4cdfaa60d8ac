// Package emit renders the textual JS-family interpreter source that
// carries one sealed *program.Program to its destination runtime. It is
// the textual counterpart of runtime.Interpreter: the same dispatch
// semantics, expressed as a text/template-rendered JS dispatch loop
// instead of a Go switch statement, parameterized over fresh identifier
// names so two emissions of the same input are lexically distinct.
package emit

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"text/template"

	"github.com/pkg/errors"

	"github.com/vanta-works/shroudvm/ident"
	"github.com/vanta-works/shroudvm/program"
)

// Config controls which optional emitted blocks the Emitter renders.
// DebugProtection and SelfDefending gate the anti-analysis routines
// (digest self-check, debugger-hook probe); VMName seeds the emitted
// interpreter's top-level comment and has no semantic effect.
type Config struct {
	VMName          string
	DebugProtection bool
	SelfDefending   bool
}

// Emitter renders one program.Program into JS source. A fresh Emitter
// (backed by a fresh *ident.NameManager) must be used per emission so the
// VM-internal names it mints never collide across two emissions sharing a
// process.
type Emitter struct {
	names *ident.NameManager
	tmpl  *template.Template
}

// NewEmitter creates an Emitter drawing VM-internal names from names.
func NewEmitter(names *ident.NameManager) (*Emitter, error) {
	tmpl, err := template.New("interpreter").Funcs(template.FuncMap{
		"js": jsString,
	}).Parse(interpreterTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "emit: parsing interpreter template")
	}
	return &Emitter{names: names, tmpl: tmpl}, nil
}

// Emit renders p into a complete, standalone JS source file that decrypts
// p's bytecode and constant pool at load time and runs them through a
// dispatch loop semantically equivalent to runtime.Interpreter.
func (e *Emitter) Emit(p *program.Program, cfg Config) (string, error) {
	data, err := e.templateData(p, cfg)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "emit: executing interpreter template")
	}
	return buf.String(), nil
}

type templateData struct {
	VMName string

	StackVar     string
	ScopeCtor    string
	DispatchFn   string
	HandlerTable string
	DecodeFn     string
	PoolVar      string
	CodeVar      string
	XorStreamFn  string
	DigestFn     string
	TimerVar     string

	CiphertextB64  string
	AESKeyB64      string
	AESIVB64       string
	ChaChaKeyB64   string
	ChaChaNonceB64 string
	CipherID       string
	OriginalLength int
	PoolJSON       string

	DebugProtection bool
	SelfDefending   bool
	DigestHex       string
	ProtectedFn     string
}

func (e *Emitter) templateData(p *program.Program, cfg Config) (templateData, error) {
	poolJSON, err := poolToJSON(p)
	if err != nil {
		return templateData{}, err
	}

	vmName := cfg.VMName
	if vmName == "" {
		vmName = "shroudvm"
	}

	digestFn := ""
	digestHex := ""
	protectedFn := ""
	if cfg.DebugProtection || cfg.SelfDefending {
		digestFn = e.names.FreshFor("digest-check")
		protectedFn = e.names.FreshFor("protected-dispatch")
		digestHex = digestHex32(sha256.Sum256(p.Ciphertext))
	}

	data := templateData{
		VMName: vmName,

		StackVar:     e.names.FreshFor("stack"),
		ScopeCtor:    e.names.FreshFor("scope-ctor"),
		DispatchFn:   e.names.FreshFor("dispatch"),
		HandlerTable: e.names.FreshFor("handlers"),
		DecodeFn:     e.names.FreshFor("decode"),
		PoolVar:      e.names.FreshFor("pool"),
		CodeVar:      e.names.FreshFor("code"),
		XorStreamFn:  e.names.FreshFor("xor-stream"),
		DigestFn:     digestFn,
		TimerVar:     e.names.FreshFor("timer"),

		CiphertextB64:  base64.StdEncoding.EncodeToString(p.Ciphertext),
		AESKeyB64:      base64.StdEncoding.EncodeToString(p.Key[:]),
		AESIVB64:       base64.StdEncoding.EncodeToString(p.IV[:]),
		ChaChaKeyB64:   base64.StdEncoding.EncodeToString(p.ChaChaKey[:]),
		ChaChaNonceB64: base64.StdEncoding.EncodeToString(p.ChaChaNonce[:]),
		CipherID:       p.CipherID,
		OriginalLength: p.OriginalLength,
		PoolJSON:       poolJSON,

		DebugProtection: cfg.DebugProtection,
		SelfDefending:   cfg.SelfDefending,
		DigestHex:       digestHex,
		ProtectedFn:     protectedFn,
	}
	return data, nil
}

// poolEntryJSON is the wire shape one pool entry takes in the emitted
// source's embedded pool literal: Kind says how Value should be
// interpreted client-side (the emitted JS has no type system to recover
// that from Value alone).
type poolEntryJSON struct {
	Tag   int             `json:"tag"`
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func poolToJSON(p *program.Program) (string, error) {
	entries := make([]poolEntryJSON, 0, len(p.Pool))
	for _, e := range p.Pool {
		raw, err := poolValueJSON(e)
		if err != nil {
			return "", err
		}
		entries = append(entries, poolEntryJSON{Tag: int(e.Tag), Kind: e.Kind, Value: raw})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", errors.Wrap(err, "emit: marshaling pool for embedding")
	}
	return string(b), nil
}

// poolValueJSON decodes e.Value (a cbor.RawMessage, produced by
// program.flattenValue) into JSON bytes matching the same shape, so the
// emitted interpreter never has to link a cbor decoder of its own —
// cipher-encoded strings and nested function bodies already carry
// JSON-friendly leaf types (strings, numbers, nested arrays of entries).
func poolValueJSON(e program.PoolEntry) (json.RawMessage, error) {
	v, err := e.Decode()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "emit: marshaling pool entry of kind %s", e.Kind)
	}
	return b, nil
}

func digestHex32(sum [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 64)
	for _, b := range sum {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}

func jsString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
