// Package cipher implements the deterministic, backend-queryable
// encryption used for every label, property key, and property value
// that crosses into the graph database: AES-128 in ECB mode with
// PKCS#7 padding, a filename-safe base64 encoding, and a one-byte
// magic prefix that marks a string as ciphertext rather than one of
// the two plaintext tokens the proxy still stores unencrypted (uid,
// hash).
//
// ECB is deliberately chosen over a randomized mode: the backend must
// be able to match ciphertext against ciphertext in a WHERE/MATCH
// clause without ever seeing the plaintext, which only works if the
// same plaintext always encrypts to the same ciphertext.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"encoding/base64"
	"fmt"

	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
)

// MagicPrefix is prepended to every encrypted token. It is a single
// letter that a plaintext uid/hash value (hex) may also begin with, so
// the proxy tells reserved properties apart by key, not by this prefix.
const MagicPrefix = "a"

// alphabet is the filename/URL-safe base64 alphabet used by the
// original encryption scheme: standard base64 with '+' and '/'
// replaced by '_' and '$'.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_$"

var encoding = base64.NewEncoding(alphabet).WithPadding(base64.NoPadding)

// Cipher encrypts and decrypts strings deterministically under a
// single fixed AES-128 key.
type Cipher struct {
	block stdcipher.Block
}

// New constructs a Cipher from a 16-byte AES-128 key.
func New(key [16]byte) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, graphproxyerrors.CryptoError(err, "failed to construct AES cipher")
	}
	return &Cipher{block: block}, nil
}

// Encrypt encrypts plaintext with AES-128-ECB and PKCS#7 padding.
func (c *Cipher) Encrypt(plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		c.block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return out
}

// Decrypt decrypts an AES-128-ECB ciphertext and strips PKCS#7
// padding.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, graphproxyerrors.CryptoError(nil, "ciphertext is not a multiple of the AES block size")
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		c.block.Decrypt(out[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	return pkcs7Unpad(out)
}

// Encode renders bytes using the filename-safe, unpadded base64
// alphabet the backend stores ciphertext with.
func (c *Cipher) Encode(data []byte) string {
	return encoding.EncodeToString(data)
}

// Decode reverses Encode.
func (c *Cipher) Decode(s string) ([]byte, error) {
	data, err := encoding.DecodeString(s)
	if err != nil {
		return nil, graphproxyerrors.CryptoError(err, "failed to decode base64 token")
	}
	return data, nil
}

// Wrap encrypts a plaintext string and returns the magic-prefixed,
// base64-encoded token stored in the backend.
func (c *Cipher) Wrap(plaintext string) string {
	return MagicPrefix + c.Encode(c.Encrypt([]byte(plaintext)))
}

// Unwrap reverses Wrap, rejecting a string with no magic prefix.
func (c *Cipher) Unwrap(token string) (string, error) {
	if len(token) < len(MagicPrefix) || token[:len(MagicPrefix)] != MagicPrefix {
		return "", graphproxyerrors.CryptoError(nil, fmt.Sprintf("token is missing magic prefix: %q", token))
	}
	raw, err := c.Decode(token[len(MagicPrefix):])
	if err != nil {
		return "", err
	}
	plain, err := c.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// IsWrapped reports whether s carries the magic prefix. It checks only
// the prefix: a plaintext uid or hash that happens to begin with 'a'
// also reports true.
func IsWrapped(s string) bool {
	return len(s) >= len(MagicPrefix) && s[:len(MagicPrefix)] == MagicPrefix
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
		return nil, graphproxyerrors.CryptoError(nil, "cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, graphproxyerrors.CryptoError(nil, "invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, graphproxyerrors.CryptoError(nil, "invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
