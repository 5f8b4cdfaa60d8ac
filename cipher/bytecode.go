package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	mathrand "math/rand"

	"github.com/pkg/errors"

	"github.com/vanta-works/shroudvm/bytecode"
)

// CipherID values, recorded on program.Program so the decoder knows which
// path produced the ciphertext it's holding.
const (
	CipherAESCBC      = "aes-cbc"
	CipherXORFallback = "xor-fallback"
)

// EncodeBytecode encrypts code with one of two reversible schemes. With
// useFallback false (the default path) it runs AES-CBC via the stdlib
// crypto/aes + crypto/cipher (no pack dependency covers classic
// block-cipher CBC mode —
// see DESIGN.md); with useFallback true it XORs code against the AES key
// bytes repeated to length, the degraded path an emitted interpreter falls
// back to if its host JS environment lacks a usable cipher primitive.
// entropy (0..1) controls how much NOP padding is appended after
// encryption when deadCode is true: len(ciphertext) * entropy * 0.3 extra
// bytes, appended after the ciphertext rather than interleaved with it. originalLen is
// the ciphertext length *before* padding, which the caller must thread
// through to program.Program.OriginalLength so DecodeBytecode can strip
// the padding back off.
func EncodeBytecode(code []byte, keys Keys, useFallback bool, deadCode bool, entropy float64) (ciphertext []byte, cipherID string, originalLen int, err error) {
	var sealed []byte
	if useFallback {
		sealed = xorRepeatingKey(code, keys.AESKey[:])
		cipherID = CipherXORFallback
	} else {
		sealed, err = aesCBCEncrypt(code, keys.AESKey[:], keys.AESIV[:])
		if err != nil {
			return nil, "", 0, err
		}
		cipherID = CipherAESCBC
	}
	originalLen = len(sealed)
	if !deadCode {
		return sealed, cipherID, originalLen, nil
	}
	return spliceNOPs(sealed, entropy), cipherID, originalLen, nil
}

// DecodeBytecode reverses EncodeBytecode: it strips the dead-code padding
// down to originalLen (padding is appended, never interleaved, so a
// single truncation is sufficient to remove it — see DESIGN.md's note on
// why padding isn't woven through the ciphertext), then decrypts per
// cipherID.
func DecodeBytecode(ciphertext []byte, keys Keys, cipherID string, originalLen int) ([]byte, error) {
	if originalLen < 0 || originalLen > len(ciphertext) {
		return nil, errors.Errorf("cipher: original length %d out of range for %d-byte ciphertext", originalLen, len(ciphertext))
	}
	sealed := ciphertext[:originalLen]
	switch cipherID {
	case CipherAESCBC:
		return aesCBCDecrypt(sealed, keys.AESKey[:], keys.AESIV[:])
	case CipherXORFallback:
		return xorRepeatingKey(sealed, keys.AESKey[:]), nil
	default:
		return nil, errors.Errorf("cipher: unknown cipher id %q", cipherID)
	}
}

func aesCBCEncrypt(plain []byte, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cipher: constructing AES block cipher")
	}
	padded := pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func aesCBCDecrypt(sealed []byte, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cipher: constructing AES block cipher")
	}
	if len(sealed)%block.BlockSize() != 0 {
		return nil, errors.New("cipher: ciphertext is not a multiple of the AES block size")
	}
	out := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, sealed)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("cipher: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errors.New("cipher: invalid PKCS7 padding")
	}
	return data[:len(data)-padLen], nil
}

// xorRepeatingKey XORs data against key repeated to data's length; its own
// inverse, used both as EncodeBytecode's degraded fallback path and as
// DecodeBytecode's counterpart.
func xorRepeatingKey(data []byte, key []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// spliceNOPs appends len(sealed)*entropy*0.3 bytecode.OpNop filler bytes
// after the real ciphertext; none are woven through it, so DecodeBytecode
// can strip them with one truncation.
func spliceNOPs(sealed []byte, entropy float64) []byte {
	n := int(float64(len(sealed)) * entropy * 0.3)
	if n <= 0 {
		return sealed
	}
	padding := make([]byte, n)
	for i := range padding {
		padding[i] = byte(bytecode.OpNop)
	}
	mathrand.Shuffle(len(padding), func(i, j int) { padding[i], padding[j] = padding[j], padding[i] })
	return append(sealed, padding...)
}
