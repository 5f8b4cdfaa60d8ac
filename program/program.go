// Package program defines the sealed artifact one emission produces: the
// encrypted bytecode plus the key material and metadata needed to decrypt
// it, cbor-serializable so a pipeline run can write it to disk as a .svmc
// file beside its output. Nothing in this module reads a .svmc back; every
// run lowers and encrypts its input afresh.
package program

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/vanta-works/shroudvm/bytecode"
	"github.com/vanta-works/shroudvm/cipher"
	"github.com/vanta-works/shroudvm/constpool"
)

// Program is the sealed tuple one emission produces: everything the
// emitted interpreter needs to decrypt and run one lowered unit, plus the key
// material needed to have produced it — a .svmc cache entry stores the
// keys too, since unlike a real secret-at-rest they are emission-scoped
// and regenerating them would just produce a different (still valid)
// emission, not recover anything an attacker couldn't already derive from
// the emitted output itself.
type Program struct {
	Ciphertext     []byte
	IV             [16]byte
	Key            [32]byte
	CipherID       string
	OriginalLength int
	Pool           []PoolEntry

	ChaChaKey   [32]byte
	ChaChaNonce [12]byte
}

// PoolEntry is constpool.Entry flattened into a cbor-friendly shape:
// constpool.Entry.Value is interface{}, which cbor can round-trip for the
// concrete types a pool actually holds (bool, int, int64, float64, string,
// cipher.EncodedString, []string, nested *bytecode.Program; int64 integer
// literals are stored as float64) as long as a
// Kind tag travels alongside it to say which one — cbor alone cannot
// recover which Go type an empty interface held.
type PoolEntry struct {
	Tag   constpool.Tag
	Kind  string
	Value cbor.RawMessage
}

// NestedBody is a cbor-friendly flattening of a *bytecode.Program held in a
// TagFunctionBody pool entry (one per nested function/arrow literal). It
// mirrors bytecode.Program's two fields directly rather than going through
// program.Program, since a function body has no ciphertext or key material
// of its own — only the top-level unit that embeds it is encrypted.
type NestedBody struct {
	Code []byte
	Pool []PoolEntry
}

// Seal builds a Program from a lowered, pool-encoded, bytecode-encrypted
// unit. keys is threaded through unchanged (rather than re-derived) so a
// cache hit on this exact Program can re-run cipher.DecodeBytecode without
// needing the original seed.
func Seal(ciphertext []byte, keys cipher.Keys, cipherID string, originalLength int, pool *constpool.Pool) (*Program, error) {
	entries, err := flattenPool(pool)
	if err != nil {
		return nil, err
	}
	return &Program{
		Ciphertext:     ciphertext,
		IV:             keys.AESIV,
		Key:            keys.AESKey,
		CipherID:       cipherID,
		OriginalLength: originalLength,
		Pool:           entries,
		ChaChaKey:      keys.ChaChaKey,
		ChaChaNonce:    keys.ChaChaNonce,
	}, nil
}

// Keys reconstructs the cipher.Keys this Program was sealed with.
func (p *Program) Keys() cipher.Keys {
	return cipher.Keys{AESKey: p.Key, AESIV: p.IV, ChaChaKey: p.ChaChaKey, ChaChaNonce: p.ChaChaNonce}
}

// Decrypt reverses cipher.EncodeBytecode for this Program's ciphertext.
func (p *Program) Decrypt() ([]byte, error) {
	return cipher.DecodeBytecode(p.Ciphertext, p.Keys(), p.CipherID, p.OriginalLength)
}

// Unpool rebuilds a *constpool.Pool from p's flattened entries, the
// counterpart of flattenPool.
func (p *Program) Unpool() (*constpool.Pool, error) {
	out := constpool.New()
	for _, e := range p.Pool {
		v, err := unflattenValue(e)
		if err != nil {
			return nil, err
		}
		if _, err := out.Insert(e.Tag, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Marshal cbor-encodes p for writing to a .svmc cache file.
func Marshal(p *Program) ([]byte, error) {
	b, err := cbor.Marshal(p)
	return b, errors.Wrap(err, "program: cbor-encoding Program")
}

// Unmarshal decodes a .svmc cache file's contents.
func Unmarshal(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "program: cbor-decoding Program")
	}
	return &p, nil
}

const (
	kindBool          = "bool"
	kindNil           = "nil"
	kindInt           = "int" // constpool's only producer is InsertOffset; the interpreter type-asserts .(int) on it
	kindFloat64       = "float64"
	kindString        = "string"
	kindStringList    = "string-list"
	kindEncodedString = "encoded-string"
	kindFunctionBody  = "function-body"
)

func flattenPool(pool *constpool.Pool) ([]PoolEntry, error) {
	entries := pool.Entries()
	out := make([]PoolEntry, 0, len(entries))
	for _, e := range entries {
		kind, raw, err := flattenValue(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, PoolEntry{Tag: e.Tag, Kind: kind, Value: raw})
	}
	return out, nil
}

func flattenValue(v interface{}) (string, cbor.RawMessage, error) {
	var kind string
	switch v.(type) {
	case nil:
		kind = kindNil
	case bool:
		kind = kindBool
	case int:
		kind = kindInt
	case int64:
		kind, v = kindFloat64, float64(v.(int64))
	case float64:
		kind = kindFloat64
	case string:
		kind = kindString
	case []string:
		kind = kindStringList
	case cipher.EncodedString:
		kind = kindEncodedString
	case *bytecode.Program:
		nested, err := flattenBody(v.(*bytecode.Program))
		if err != nil {
			return "", nil, err
		}
		raw, err := cbor.Marshal(nested)
		return kindFunctionBody, raw, errors.Wrap(err, "program: cbor-encoding nested function body")
	default:
		return "", nil, errors.Errorf("program: cannot serialize pool value of type %T", v)
	}
	raw, err := cbor.Marshal(v)
	if err != nil {
		return "", nil, errors.Wrapf(err, "program: cbor-encoding pool value of kind %s", kind)
	}
	return kind, raw, nil
}

func flattenBody(body *bytecode.Program) (NestedBody, error) {
	entries, err := flattenPool(body.Pool)
	if err != nil {
		return NestedBody{}, err
	}
	return NestedBody{Code: body.Code, Pool: entries}, nil
}

func unflattenBody(nested NestedBody) (*bytecode.Program, error) {
	pool := constpool.New()
	for _, e := range nested.Pool {
		v, err := unflattenValue(e)
		if err != nil {
			return nil, err
		}
		if _, err := pool.Insert(e.Tag, v); err != nil {
			return nil, err
		}
	}
	return bytecode.NewProgram(nested.Code, pool), nil
}

// jsonNestedBody is NestedBody's JSON-facing shape: Code renders as a
// base64 string (encoding/json's standard []byte treatment) rather than
// cbor.RawMessage, and Pool entries recurse through Decode so an emitter
// can embed an arbitrarily deep chain of nested closures as plain JSON
// with no cbor decoder of its own.
type jsonNestedBody struct {
	Code []byte        `json:"code"`
	Pool []interface{} `json:"pool"`
}

type jsonPoolEntry struct {
	Tag   constpool.Tag `json:"tag"`
	Kind  string        `json:"kind"`
	Value interface{}   `json:"value"`
}

// Decode renders e's value as a plain, JSON-marshalable Go value: the
// interpreter-facing primitive types as-is, and a TagFunctionBody entry as
// a nested {code, pool} structure built recursively the same way, so a
// caller with no cbor dependency of its own (the emit package) can embed
// an arbitrarily deep pool straight into a JSON/JS literal.
func (e PoolEntry) Decode() (interface{}, error) {
	if e.Kind != kindFunctionBody {
		return unflattenValue(e)
	}
	var nested NestedBody
	if err := cbor.Unmarshal(e.Value, &nested); err != nil {
		return nil, errors.Wrap(err, "program: cbor-decoding nested function body")
	}
	entries := make([]interface{}, 0, len(nested.Pool))
	for _, child := range nested.Pool {
		v, err := jsonPoolEntryFor(child)
		if err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	return jsonNestedBody{Code: nested.Code, Pool: entries}, nil
}

func jsonPoolEntryFor(e PoolEntry) (jsonPoolEntry, error) {
	v, err := e.Decode()
	if err != nil {
		return jsonPoolEntry{}, err
	}
	return jsonPoolEntry{Tag: e.Tag, Kind: e.Kind, Value: v}, nil
}

func unflattenValue(e PoolEntry) (interface{}, error) {
	var err error
	switch e.Kind {
	case kindNil:
		return nil, nil
	case kindBool:
		var b bool
		err = cbor.Unmarshal(e.Value, &b)
		return b, err
	case kindInt:
		var n int
		err = cbor.Unmarshal(e.Value, &n)
		return n, err
	case kindFloat64:
		var n float64
		err = cbor.Unmarshal(e.Value, &n)
		return n, err
	case kindString:
		var s string
		err = cbor.Unmarshal(e.Value, &s)
		return s, err
	case kindStringList:
		var s []string
		err = cbor.Unmarshal(e.Value, &s)
		return s, err
	case kindEncodedString:
		var s cipher.EncodedString
		err = cbor.Unmarshal(e.Value, &s)
		return s, err
	case kindFunctionBody:
		var nested NestedBody
		if err = cbor.Unmarshal(e.Value, &nested); err != nil {
			return nil, err
		}
		return unflattenBody(nested)
	default:
		return nil, errors.Errorf("program: unknown pool value kind %q", e.Kind)
	}
}
