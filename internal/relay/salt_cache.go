package relay

import (
	"encoding/base64"
	"sync"

	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
)

// SaltCache mirrors the reference RELAY_SALT singleton: it remembers
// the (password, salt) pair the last successful KDF derivation used so
// reconnects skip re-deriving the 192-bit key when nothing changed
// (§3 "Relay SaltCache").
type SaltCache struct {
	mu       sync.Mutex
	password string
	saltB64  string
	key      []byte
	has      bool
}

// Cached returns the previously derived key and its salt if password
// matches what produced it.
func (c *SaltCache) Cached(password string) (key []byte, saltB64 string, ok bool) {
	if password == "" {
		return nil, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.has && c.password == password {
		return c.key, c.saltB64, true
	}
	return nil, "", false
}

// Set derives and caches a new key for password/saltB64, replacing any
// previous entry (called after the server returns KdfSaltMismatch).
func (c *SaltCache) Set(password, saltB64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, err
	}
	key := cryptoutil.RelayPasswordKDF(password, salt)

	c.mu.Lock()
	c.password = password
	c.saltB64 = saltB64
	c.key = key
	c.has = true
	c.mu.Unlock()
	return key, nil
}
