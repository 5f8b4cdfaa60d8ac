// Package cipher implements the two encoding layers the lowered program's
// emission passes through before it is embedded in the rendered
// interpreter: a chacha20-keystream encoding of the constant pool's string
// entries (cipher.EncodePool), and an AES-CBC (with a raw-XOR fallback
// path) encryption of the instruction stream itself (cipher.EncodeBytecode).
// Both draw their key material from a single emission seed via
// cipher.DeriveKeys, rather than generating independent randomness per
// layer, so one seed fully determines — and can reproduce, for testing —
// an emission's cryptographic material.
package cipher

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// Keys is the key material for one emission, all derived from a single
// random seed so the AES layer (bytecode) and the chacha20 layer (pool
// strings) share one auditable derivation path instead of two independent
// crypto/rand draws.
type Keys struct {
	AESKey      [32]byte
	AESIV       [16]byte
	ChaChaKey   [32]byte
	ChaChaNonce [12]byte
}

// DeriveKeys expands seed (any length, but 32 random bytes is the expected
// call shape) into every key an emission needs via HKDF-SHA256, with a
// fixed info string per sub-key so the same seed always reproduces the
// same derived material — useful for test fixtures that need a
// deterministic ciphertext without weakening production randomness (seed
// itself must still come from crypto/rand at the call site).
func DeriveKeys(seed []byte) (Keys, error) {
	var keys Keys
	for _, field := range []struct {
		info string
		buf  []byte
	}{
		{"shroudvm-aes-key", keys.AESKey[:]},
		{"shroudvm-aes-iv", keys.AESIV[:]},
		{"shroudvm-chacha-key", keys.ChaChaKey[:]},
		{"shroudvm-chacha-nonce", keys.ChaChaNonce[:]},
	} {
		r := hkdf.New(sha256.New, seed, nil, []byte(field.info))
		if _, err := io.ReadFull(r, field.buf); err != nil {
			return Keys{}, errors.Wrapf(err, "deriving %s", field.info)
		}
	}
	return keys, nil
}
