// Package security provides credential encryption and API key generation.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required encryption key length in bytes (AES-256).
const KeySize = 32

// ErrEncryption wraps every encrypt/decrypt failure: malformed tokens, failed
// authentication, and non-JSON plaintext all report as encryption errors.
var ErrEncryption = errors.New("encryption error")

// Cipher encrypts and decrypts credential maps with AES-256-GCM. A token is
// base64(nonce || ciphertext || tag); any bit flip fails authentication on
// decrypt rather than yielding corrupted data.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrEncryption, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %v", ErrEncryption, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher.NewGCM: %v", ErrEncryption, err)
	}

	return &Cipher{aead: aead}, nil
}

// NewEphemeralCipher creates a Cipher with a random process-lifetime key.
// Tokens it produces become unreadable after restart; intended only for
// development environments, and callers are expected to log a warning.
func NewEphemeralCipher() (*Cipher, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// GenerateKey returns a fresh random 32-byte encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%w: rand key: %v", ErrEncryption, err)
	}
	return key, nil
}

// Encrypt serializes the credential map to JSON and seals it into an opaque
// base64 token.
func (c *Cipher) Encrypt(credentials map[string]any) (string, error) {
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("%w: marshal credentials: %v", ErrEncryption, err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: rand nonce: %v", ErrEncryption, err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt and returns the credential map.
// Fails if the token is malformed, fails authentication, or decodes to
// non-JSON content.
func (c *Cipher) Decrypt(token string) (map[string]any, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrEncryption, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: token too short", ErrEncryption)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed: %v", ErrEncryption, err)
	}

	var credentials map[string]any
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, fmt.Errorf("%w: decrypted data is not valid JSON: %v", ErrEncryption, err)
	}

	return credentials, nil
}

// RotateKey decrypts a token with oldKey and re-encrypts it with newKey.
// Used by offline key-rotation tooling; never invoked automatically.
func RotateKey(oldKey, newKey []byte, token string) (string, error) {
	oldCipher, err := NewCipher(oldKey)
	if err != nil {
		return "", err
	}
	newCipher, err := NewCipher(newKey)
	if err != nil {
		return "", err
	}

	credentials, err := oldCipher.Decrypt(token)
	if err != nil {
		return "", err
	}

	return newCipher.Encrypt(credentials)
}
