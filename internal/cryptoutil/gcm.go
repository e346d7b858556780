package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrInvalidNonceSize is returned when a nonce is not 12 bytes.
var ErrInvalidNonceSize = errors.New("cryptoutil: nonce must be 12 bytes")

// ErrAuthenticationFailed is returned when GCM tag verification fails.
var ErrAuthenticationFailed = errors.New("cryptoutil: authentication failed")

// GCMCipher is the relay-channel cipher (§4.2): AES-GCM with a 12-byte
// nonce and 16-byte tag, supporting 128/192/256-bit keys selected by key
// length (the relay handshake always derives a 192-bit key, but the
// cipher itself is key-size agnostic, as the upstream construction is).
type GCMCipher struct {
	aead cipher.AEAD
}

// NewGCMCipher builds a GCM cipher from a 16/24/32-byte key.
func NewGCMCipher(key []byte) (*GCMCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &GCMCipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce ‖ ciphertext ‖ tag, generating
// a fresh random nonce internally. This matches the relay frame format
// of §4.1, where every sealed unit carries its own nonce.
func (c *GCMCipher) Seal(aad, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := c.aead.Seal(nonce, nonce, plaintext, aad)
	return out, nil
}

// Open splits nonce ‖ ciphertext ‖ tag apart and authenticates+decrypts.
func (c *GCMCipher) Open(aad, sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidNonceSize, len(sealed))
	}
	nonce, ciphertext := sealed[:ns], sealed[ns:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}
