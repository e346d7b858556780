// Package config implements the ConfigPort{snapshot(), update(fn)->save()}
// contract (§1, §3): a process-wide, read-mostly configuration snapshot
// persisted to config.yaml and guarded by a single readers-writer lock.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Snapshot is the config data model (§3). Invariant: SecretKeyHex decodes
// to 16/24/32 bytes; ServerPort parses as a u16.
type Snapshot struct {
	ServerPort             uint16   `yaml:"server_port"`
	SecretKeyHex           string   `yaml:"secret_key_hex"`
	SavePath               string   `yaml:"save_path"`
	Language               string   `yaml:"language"`
	AutoStart              bool     `yaml:"auto_start"`
	ShowTrayIcon           bool     `yaml:"show_tray_icon"`
	ExternalIPs            []string `yaml:"external_ips,omitempty"`
	TrustedRemoteHosts     []string `yaml:"trusted_remote_hosts,omitempty"`
	RelayServerAddress     string   `yaml:"relay_server_address,omitempty"`
	RelaySecretKey         string   `yaml:"relay_secret_key,omitempty"`
	EnableRelay            bool     `yaml:"enable_relay"`
	AllowToBeSearchedOnce  bool     `yaml:"allow_to_be_searched_once"`
	DeviceID               string   `yaml:"device_id"`
}

// ErrInvalidSecretKey is returned when SecretKeyHex does not decode to a
// valid AES key length.
var ErrInvalidSecretKey = errors.New("config: secret_key_hex must decode to 16, 24 or 32 bytes")

// SecretKey decodes SecretKeyHex, validating its length.
func (s *Snapshot) SecretKey() ([]byte, error) {
	key, err := hex.DecodeString(s.SecretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(key))
	}
}

// Store owns the single in-memory config snapshot and its on-disk
// persistence. All mutators immediately persist (§5 "Certificates/config
// files: write-replace from a single init path").
type Store struct {
	path string
	mu   sync.RWMutex
	snap Snapshot
}

// DefaultPath returns the config file location: ./config.yaml, relocated
// under the platform's local-data directory on macOS, as the original
// does (§6).
func DefaultPath() string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support", "Windsend", "config.yaml")
		}
	}
	return "config.yaml"
}

func defaultSnapshot() Snapshot {
	key := make([]byte, 32)
	rand.Read(key)
	return Snapshot{
		ServerPort:   6779,
		SecretKeyHex: hex.EncodeToString(key),
		SavePath:     "./received_files",
		Language:     "en",
		ShowTrayIcon: true,
		DeviceID:     uuid.NewString(),
	}
}

// Load reads path if present, otherwise generates a default snapshot and
// persists it immediately so the generated secret key and device id
// survive a restart instead of being regenerated every run.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		snap := defaultSnapshot()
		if err := save(path, &snap); err != nil {
			return nil, fmt.Errorf("config: persist default config: %w", err)
		}
		s.snap = snap
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if snap.DeviceID == "" {
		snap.DeviceID = uuid.NewString()
	}
	s.snap = snap
	return s, nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Update applies fn to a copy of the snapshot under the write lock and
// persists the result. fn's mutations only take effect if Update
// returns a nil error.
func (s *Store) Update(fn func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	fn(&next)
	if err := save(s.path, &next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// save write-replaces the config file, guarded by a file lock so
// concurrent Update calls from different goroutines (or, in principle,
// processes sharing the same config path) never interleave writes.
func save(path string, snap *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("config: acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: replace config file: %w", err)
	}
	return nil
}
