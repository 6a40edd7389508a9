// Package secret encrypts credential blobs for at-rest storage.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// Value is the result of decrypting a blob. Values is non-nil when the
// plaintext was a JSON object of string pairs; otherwise Raw holds the
// plaintext as-is and Values is nil. Callers must handle either shape.
type Value struct {
	Values map[string]string
	Raw    string
}

// Codec seals and opens credential blobs with AES-256-GCM.
// Ciphertexts are base64-encoded nonce||sealed bytes.
type Codec struct {
	aead cipher.AEAD
}

// New creates a Codec from a 32-byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// EncryptMap serializes the mapping to JSON and encrypts it.
func (c *Codec) EncryptMap(values map[string]string) (string, error) {
	plain, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return c.seal(plain)
}

// EncryptString encrypts a raw string.
func (c *Codec) EncryptString(s string) (string, error) {
	return c.seal([]byte(s))
}

// Decrypt opens a ciphertext produced by EncryptMap or EncryptString.
// It returns an error when the ciphertext is malformed or was sealed under a
// different key; the caller treats that as a recoverable condition.
func (c *Codec) Decrypt(ciphertext string) (*Value, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(plain, &values); err == nil {
		return &Value{Values: values}, nil
	}
	return &Value{Raw: string(plain)}, nil
}

func (c *Codec) seal(plain []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
