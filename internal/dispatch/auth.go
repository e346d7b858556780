// Package dispatch implements the Dispatcher/Auth component (C4): the
// per-connection read-authenticate-route loop (§4.4).
package dispatch

import (
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// timeLayout matches the reference cleartext prefix "YYYY-MM-DD HH:MM:SS".
const timeLayout = "2006-01-02 15:04:05"

// maxTimeDiff bounds clock skew between the peer's token and server time
// (§4.4).
const maxTimeDiff = 300 * time.Second

// ErrUnauthorized is returned by authenticate for every rejection path;
// the caller always responds 401 and closes the connection.
var ErrUnauthorized = errors.New("dispatch: unauthorized")

// authenticate implements §4.4 step 2. localAddr/remoteAddr are the
// connection's own local and peer addresses (used for the time-IP
// check); allowSearch is the process-wide quick-pair gate.
func authenticate(head *wire.RequestHeader, localAddr, remoteAddr net.Addr, allowSearch bool, snap config.Snapshot, cipher *cryptoutil.CBCFollowedCipher) error {
	if head.Action == wire.ActionMatch {
		if allowSearch {
			return nil
		}
		return ErrUnauthorized
	}

	if head.TimeIP == "" {
		return ErrUnauthorized
	}
	raw, err := hex.DecodeString(head.TimeIP)
	if err != nil {
		return ErrUnauthorized
	}
	plain, err := cipher.Decrypt(raw)
	if err != nil {
		return ErrUnauthorized
	}
	text := string(plain)
	if len(text) < len(timeLayout)+1 {
		return ErrUnauthorized
	}
	timeStr := text[:len(timeLayout)]
	host := text[len(timeLayout)+1:]

	t, err := time.Parse(timeLayout, timeStr)
	if err != nil {
		return ErrUnauthorized
	}
	if diff := time.Since(t); diff > maxTimeDiff || diff < -maxTimeDiff {
		return ErrUnauthorized
	}

	localIP := stripZone(stripIPv4Mapped(hostOf(localAddr)))
	host = stripZone(stripIPv4Mapped(host))
	if host == localIP {
		return nil
	}
	for _, ip := range snap.ExternalIPs {
		if host == ip {
			return nil
		}
	}
	peerIP := stripZone(stripIPv4Mapped(hostOf(remoteAddr)))
	for _, trusted := range snap.TrustedRemoteHosts {
		if peerIP == trusted {
			return nil
		}
	}
	return ErrUnauthorized
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func stripIPv4Mapped(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}

func stripZone(ip string) string {
	if i := strings.IndexByte(ip, '%'); i >= 0 {
		return ip[:i]
	}
	return ip
}

