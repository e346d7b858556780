package dispatch

import (
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func timeIPToken(t *testing.T, cipher *cryptoutil.CBCFollowedCipher, when time.Time, host string) string {
	t.Helper()
	plain := when.UTC().Format(timeLayout) + "_" + host
	enc, err := cipher.Encrypt([]byte(plain))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return hex.EncodeToString(enc)
}

func TestAuthenticateMatchBypassRequiresAllowSearch(t *testing.T) {
	head := &wire.RequestHeader{Action: wire.ActionMatch}
	snap := config.Snapshot{}
	cipher, _ := cryptoutil.NewCBCFollowedCipher([]byte("0123456789abcdef"))

	if err := authenticate(head, fakeAddr("10.0.0.1:1"), fakeAddr("10.0.0.2:2"), false, snap, cipher); err == nil {
		t.Error("expected match to be rejected when allowSearch is false")
	}
	if err := authenticate(head, fakeAddr("10.0.0.1:1"), fakeAddr("10.0.0.2:2"), true, snap, cipher); err != nil {
		t.Errorf("expected match to pass when allowSearch is true, got %v", err)
	}
}

func TestAuthenticateAcceptsFreshTokenMatchingLocalAddr(t *testing.T) {
	key := []byte("0123456789abcdef")
	cipher, _ := cryptoutil.NewCBCFollowedCipher(key)
	snap := config.Snapshot{SecretKeyHex: hex.EncodeToString(key)}

	token := timeIPToken(t, cipher, time.Now(), "192.168.1.5")
	head := &wire.RequestHeader{Action: wire.ActionPasteText, TimeIP: token}

	err := authenticate(head, fakeAddr("192.168.1.5:6779"), fakeAddr("192.168.1.9:55000"), false, snap, cipher)
	if err != nil {
		t.Errorf("expected authentication to succeed, got %v", err)
	}
}

func TestAuthenticateRejectsStaleTimestamp(t *testing.T) {
	key := []byte("0123456789abcdef")
	cipher, _ := cryptoutil.NewCBCFollowedCipher(key)
	snap := config.Snapshot{SecretKeyHex: hex.EncodeToString(key)}

	stale := time.Now().Add(-10 * time.Minute)
	token := timeIPToken(t, cipher, stale, "192.168.1.5")
	head := &wire.RequestHeader{Action: wire.ActionPasteText, TimeIP: token}

	err := authenticate(head, fakeAddr("192.168.1.5:6779"), fakeAddr("192.168.1.9:55000"), false, snap, cipher)
	if err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized for a stale token, got %v", err)
	}
}

func TestAuthenticateAcceptsTrustedRemoteHost(t *testing.T) {
	key := []byte("0123456789abcdef")
	cipher, _ := cryptoutil.NewCBCFollowedCipher(key)
	snap := config.Snapshot{
		SecretKeyHex:       hex.EncodeToString(key),
		TrustedRemoteHosts: []string{"203.0.113.9"},
	}

	token := timeIPToken(t, cipher, time.Now(), "203.0.113.9")
	head := &wire.RequestHeader{Action: wire.ActionPasteText, TimeIP: token}

	err := authenticate(head, fakeAddr("10.0.0.1:6779"), fakeAddr("203.0.113.9:55000"), false, snap, cipher)
	if err != nil {
		t.Errorf("expected trusted-remote-host match to succeed, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownHost(t *testing.T) {
	key := []byte("0123456789abcdef")
	cipher, _ := cryptoutil.NewCBCFollowedCipher(key)
	snap := config.Snapshot{SecretKeyHex: hex.EncodeToString(key)}

	token := timeIPToken(t, cipher, time.Now(), "198.51.100.7")
	head := &wire.RequestHeader{Action: wire.ActionPasteText, TimeIP: token}

	err := authenticate(head, fakeAddr("10.0.0.1:6779"), fakeAddr("198.51.100.7:55000"), false, snap, cipher)
	if err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized for an unrecognised host, got %v", err)
	}
}

func TestStripIPv4MappedAndZone(t *testing.T) {
	if got := stripIPv4Mapped("::ffff:192.168.1.1"); got != "192.168.1.1" {
		t.Errorf("stripIPv4Mapped = %q, want 192.168.1.1", got)
	}
	if got := stripZone("fe80::1%eth0"); got != "fe80::1" {
		t.Errorf("stripZone = %q, want fe80::1", got)
	}
}

func TestHostOfSplitsPort(t *testing.T) {
	addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:6779")
	if got := hostOf(addr); got != "127.0.0.1" {
		t.Errorf("hostOf = %q, want 127.0.0.1", got)
	}
}
