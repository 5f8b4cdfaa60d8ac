package cipher

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"

	"github.com/vanta-works/shroudvm/constpool"
)

// EncodedString is the wrapped form a TagString entry takes once
// EncodePool has run over it: {tag:"encoded", method:"xor", value:
// base64(...)}, with chacha20 driving the keystream rather than a short
// repeating XOR key.
type EncodedString struct {
	Tag    string
	Method string
	Value  string
}

// EncodePool returns a new pool with every TagString entry's plain string
// replaced by its EncodedString wrapper, using key/nonce as a chacha20
// keystream. Non-string entries pass through untouched. Re-running
// EncodePool over an already-encoded pool is a no-op: an entry already
// holding an EncodedString is copied as-is rather than encoded again.
func EncodePool(pool *constpool.Pool, key [32]byte, nonce [12]byte) (*constpool.Pool, error) {
	out := constpool.New()
	for _, entry := range pool.Entries() {
		if entry.Tag != constpool.TagString {
			if _, err := out.Insert(entry.Tag, entry.Value); err != nil {
				return nil, err
			}
			continue
		}
		if _, already := entry.Value.(EncodedString); already {
			if _, err := out.Insert(entry.Tag, entry.Value); err != nil {
				return nil, err
			}
			continue
		}
		s, ok := entry.Value.(string)
		if !ok {
			return nil, errors.Errorf("cipher: string-tagged pool entry held %T, not string", entry.Value)
		}
		enc, err := xorStream(key, nonce, []byte(s))
		if err != nil {
			return nil, err
		}
		wrapped := EncodedString{
			Tag:    "encoded",
			Method: "xor",
			Value:  base64.StdEncoding.EncodeToString(enc),
		}
		if _, err := out.Insert(entry.Tag, wrapped); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodePool is EncodePool's inverse, used by shroudvm's own tests to
// verify a round trip and by any Go-side tooling that needs to read an
// encoded pool's string contents back out (the rendered JS interpreter
// does the equivalent decoding itself, in its own XOR-stream helper).
func DecodePool(pool *constpool.Pool, key [32]byte, nonce [12]byte) (*constpool.Pool, error) {
	out := constpool.New()
	for _, entry := range pool.Entries() {
		if entry.Tag != constpool.TagString {
			if _, err := out.Insert(entry.Tag, entry.Value); err != nil {
				return nil, err
			}
			continue
		}
		wrapped, ok := entry.Value.(EncodedString)
		if !ok {
			if _, err := out.Insert(entry.Tag, entry.Value); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(wrapped.Value)
		if err != nil {
			return nil, errors.Wrap(err, "cipher: decoding base64 pool string")
		}
		dec, err := xorStream(key, nonce, raw)
		if err != nil {
			return nil, err
		}
		if _, err := out.Insert(entry.Tag, string(dec)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// xorStream XORs data against a chacha20 keystream; the same call decodes
// what it encoded, since XOR against an identical keystream is its own
// inverse.
func xorStream(key [32]byte, nonce [12]byte, data []byte) ([]byte, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, errors.Wrap(err, "cipher: constructing chacha20 keystream")
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}
