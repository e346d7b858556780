// Package cryptoutil provides the cryptographic primitives used by the
// framed command protocol and the relay client: a legacy AES-CBC token
// cipher, an AES-GCM channel cipher, SHA-256/Argon2id key derivation,
// and X25519 ephemeral key exchange.
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Aes192Key derives a 24-byte AES-192 key from arbitrary input by
// truncating its SHA-256 digest, matching the relay handshake's
// hash_to_aes192_key construction.
func Aes192Key(input []byte) []byte {
	sum := sha256.Sum256(input)
	key := make([]byte, 24)
	copy(key, sum[:24])
	return key
}

// KeySelector identifies a derived key to the relay server without
// revealing it: hex(SHA-256(key)[0:4]).
func KeySelector(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}
