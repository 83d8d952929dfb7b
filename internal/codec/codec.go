// Package codec encrypts, decrypts and masks card numbers.
//
// Encryption is deterministic: AES in ECB mode with PKCS#7 padding, encoded
// as standard base64. Equal plaintexts produce equal ciphertexts, which is
// what lets the card store detect a duplicate number by comparing
// ciphertexts. The same property leaks number equality to anyone who can read
// the stored values; replacing it with a randomized cipher plus a keyed
// fingerprint column is a known hardening step.
package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/phrazzld/bankcards-api/internal/domain"
)

// ErrCrypto is returned when a value cannot be encrypted or decrypted.
var ErrCrypto = errors.New("card number encryption failure")

// ErrInvalidKey is returned by New when the key is not a valid AES key length.
var ErrInvalidKey = errors.New("card key must be 16, 24 or 32 bytes")

// MaskPrefix is prepended to the last four characters of a masked number.
const MaskPrefix = "**** **** **** "

// Codec performs card-number encryption with a fixed symmetric key.
// It is safe for concurrent use.
type Codec struct {
	block cipher.Block
}

// New creates a Codec from a raw AES key.
func New(key []byte) (*Codec, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Codec{block: block}, nil
}

// Encrypt returns the base64 ciphertext of plaintext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", ErrCrypto)
	}

	bs := c.block.BlockSize()
	data := pad([]byte(plaintext), bs)
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		c.block.Encrypt(out[i:i+bs], data[i:i+bs])
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A malformed ciphertext or a wrong key yields ErrCrypto.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrCrypto)
	}

	bs := c.block.BlockSize()
	if len(raw) == 0 || len(raw)%bs != 0 {
		return "", fmt.Errorf("%w: invalid ciphertext length", ErrCrypto)
	}

	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += bs {
		c.block.Decrypt(out[i:i+bs], raw[i:i+bs])
	}

	plain, err := unpad(out, bs)
	if err != nil {
		return "", err
	}

	return string(plain), nil
}

// Mask returns the display form of a card number, revealing only its last
// four characters.
func Mask(plaintext string) (string, error) {
	runes := []rune(plaintext)
	if len(runes) < 4 {
		return "", domain.NewValidationError("card_number", "must have at least 4 characters", domain.ErrInvalidFormat)
	}
	return MaskPrefix + string(runes[len(runes)-4:]), nil
}

// Mask calls the package-level Mask.
func (c *Codec) Mask(plaintext string) (string, error) {
	return Mask(plaintext)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
		}
	}
	return data[:len(data)-n], nil
}
