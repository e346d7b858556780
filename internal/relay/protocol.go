// Package relay implements the Relay Client (C9, §4.9): an outbound
// connection to a rendezvous server that multiplexes heartbeats and
// tunnelled client sessions over a single X25519+AES-GCM secured TCP
// stream.
package relay

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// Actions carried by CommonReqHead (§6 "Relay frames").
const (
	ActionConnect   = "connect"
	ActionPing      = "ping"
	ActionRelay     = "relay"
	ActionClose     = "close"
	ActionHeartbeat = "heartbeat"
)

// Status codes for HandshakeResp/RespHead.
const (
	StatusSuccess         = "success"
	StatusKdfSaltMismatch = "kdfSaltMismatch"
	StatusError           = "error"
)

// HandshakeReq is sent unframed (raw length-prefixed JSON, no cipher)
// to open a relay session (§4.9 step 2, §6).
type HandshakeReq struct {
	SecretKeySelector string `json:"secretKeySelector,omitempty"`
	AuthFieldB64      string `json:"authFieldB64,omitempty"`
	AuthAAD           string `json:"authAAD,omitempty"`
	KdfSaltB64        string `json:"kdfSaltB64,omitempty"`
	EcdhPublicKeyB64  string `json:"ecdhPublicKeyB64"`
}

// HandshakeResp is the server's unframed reply.
type HandshakeResp struct {
	Code             string `json:"code"`
	Msg              string `json:"msg,omitempty"`
	EcdhPublicKeyB64 string `json:"ecdhPublicKeyB64,omitempty"`
	KdfSaltB64       string `json:"kdfSaltB64,omitempty"`
}

// CommonReqHead is the sealed-frame header every post-handshake relay
// message shares (§6).
type CommonReqHead struct {
	Action  string `json:"action"`
	DataLen int64  `json:"dataLen"`
}

// ConnectionReq is the body of the initial `connect` request.
type ConnectionReq struct {
	ID string `json:"id"`
}

// RespHead is the sealed-frame response header the relay server sends
// back for `connect`/`heartbeat` requests.
type RespHead struct {
	Code    string `json:"code"`
	Msg     string `json:"msg,omitempty"`
	Action  string `json:"action"`
	DataLen int64  `json:"dataLen"`
}

// HeartbeatReq is the body of a `heartbeat` request from the server.
type HeartbeatReq struct {
	NeedResp bool `json:"needResp"`
}

// readUnframed reads a `[u32 LE length][JSON]` message with no cipher
// wrapping, used only for the handshake exchange (§4.1 "HandshakeReq
// and HandshakeResp are unframed").
func readUnframed(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

// writeUnframed writes v as a `[u32 LE length][JSON]` message.
func writeUnframed(w io.Writer, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// readSealed reads a sealed relay frame via wire.ReadSealed and
// unmarshals the authenticated plaintext as JSON into v.
func readSealed(r io.Reader, cipher *cryptoutil.GCMCipher, aad []byte, v any) error {
	plain, err := wire.ReadSealed(r, cipher, aad)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}

// writeSealed marshals v as JSON and writes it as a sealed relay frame
// via wire.WriteSealed.
func writeSealed(w io.Writer, cipher *cryptoutil.GCMCipher, aad []byte, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return wire.WriteSealed(w, cipher, aad, buf)
}
