package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// X25519KeyPair is an ephemeral Diffie-Hellman keypair used once per
// relay handshake (§4.2, §4.9).
type X25519KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateX25519 generates a fresh ephemeral keypair.
func GenerateX25519() (*X25519KeyPair, error) {
	var kp X25519KeyPair
	if _, err := rand.Read(kp.PrivateKey[:]); err != nil {
		return nil, fmt.Errorf("generate X25519 private key: %w", err)
	}
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return &kp, nil
}

// SharedSecret performs the ECDH scalar multiplication and rejects an
// all-zero result, which would indicate a degenerate public key.
func SharedSecret(ourPrivate, theirPublic *[32]byte) ([32]byte, error) {
	var shared [32]byte
	curve25519.ScalarMult(&shared, ourPrivate, theirPublic)
	zero := true
	for _, b := range shared {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return shared, errors.New("cryptoutil: X25519 exchange produced an all-zero shared secret")
	}
	return shared, nil
}

// HKDFExpand derives n bytes of key material from secret material and an
// HKDF-SHA256 salt+info pair. The relay handshake does not call it: its
// session key is Aes192Key of the ECDH shared secret.
func HKDFExpand(secret, salt []byte, info string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// RelayPasswordKDF derives the 192-bit AES key the relay handshake uses
// when a relay password is configured, from the password and the salt
// the relay hands back in its handshake response.
// Argon2id is used in place of the simpler scheme the original source
// favours, matching the teacher's keystore KDF choice.
func RelayPasswordKDF(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 3, 64*1024, 4, 24)
}

// RandomSalt returns a fresh 16-byte salt for the relay password KDF.
func RandomSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
