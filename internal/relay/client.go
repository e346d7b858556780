package relay

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/dispatch"
	"github.com/doraemonkeys/windsend-go/internal/observability"
	"github.com/doraemonkeys/windsend-go/internal/status"
)

// Outer-loop retry parameters (§4.9).
const (
	baseRetry = 3 * time.Second
	slowRetry = 60 * time.Second
	maxTries  = 30
)

// idleTimeout and postRelayTimeout bound the multiplex loop's frame
// read (§4.9 step 5, §5).
const (
	idleTimeout      = 180 * time.Second
	postRelayTimeout = 3 * time.Second
)

// Dispatcher is the subset of dispatch.Dispatcher the relay client
// needs to hand a tunnelled TLS connection to (§4.9 step 5 "Relay").
type Dispatcher interface {
	Serve(conn dispatch.Conn) error
}

// Client is the Relay Client (C9): an optional background loop started
// only when enable_relay && relay_server_address != "" (§4.9).
type Client struct {
	cfg        *config.Store
	dispatcher Dispatcher
	tlsConfig  *tls.Config
	hub        *status.Hub
	log        *observability.Logger
	metric     *observability.Metrics
	dialer     net.Dialer

	salt SaltCache
}

// New constructs a relay Client.
func New(cfg *config.Store, dispatcher Dispatcher, tlsConfig *tls.Config, hub *status.Hub, log *observability.Logger, metric *observability.Metrics) *Client {
	return &Client{cfg: cfg, dispatcher: dispatcher, tlsConfig: tlsConfig, hub: hub, log: log, metric: metric}
}

// Run is the outer retry loop (§4.9 "Outer loop"). It returns only when
// ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	tries := 0
	retry := baseRetry
	for {
		snap := c.cfg.Snapshot()
		if !snap.EnableRelay || snap.RelayServerAddress == "" {
			if !c.sleep(ctx, retry) {
				return
			}
			continue
		}

		ok := c.relayMain(ctx, snap)
		if ok {
			tries = 0
			retry = baseRetry
		} else {
			tries++
			if c.metric != nil {
				c.metric.RelayReconnects.Inc()
			}
			if tries >= maxTries {
				retry = slowRetry
			}
		}

		if !c.sleep(ctx, retry) {
			return
		}
	}
}

// sleep waits for d, ctx cancellation, or a RelayConfigChanged signal,
// whichever comes first; it returns false iff ctx was cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.hub.RelayConfigChanged.C():
		return true
	}
}

// relayMain implements §4.9 "relay_main": one full connect-handshake-
// multiplex attempt. Returns true iff the session ran (connected
// successfully), regardless of how it later ended.
func (c *Client) relayMain(ctx context.Context, snap config.Snapshot) bool {
	spanCtx, span := observability.StartSpan(ctx, "relay.session")
	defer span.End()

	conn, err := c.dialer.DialContext(spanCtx, "tcp", snap.RelayServerAddress)
	if err != nil {
		if c.log != nil {
			c.log.Error(err, "relay: dial failed")
		}
		return false
	}

	cipher, err := c.handshake(conn, snap)
	if err != nil {
		if c.log != nil {
			c.log.Error(err, "relay: handshake failed")
		}
		conn.Close()
		return false
	}

	if err := c.sendConnectionReq(conn, cipher, snap.DeviceID); err != nil {
		if c.log != nil {
			c.log.Error(err, "relay: connection request failed")
		}
		conn.Close()
		return false
	}

	if c.log != nil {
		c.log.RelayStatusChanged(true)
	}
	if c.metric != nil {
		c.metric.RelayConnected.Set(1)
	}
	c.hub.RelayStatusChanged.Send(true)

	c.multiplex(ctx, conn, cipher)

	if c.log != nil {
		c.log.RelayStatusChanged(false)
	}
	if c.metric != nil {
		c.metric.RelayConnected.Set(0)
	}
	c.hub.RelayStatusChanged.Send(false)
	return true
}

// handshake implements §4.9 step 2.
func (c *Client) handshake(conn net.Conn, snap config.Snapshot) (*cryptoutil.GCMCipher, error) {
	kp, err := cryptoutil.GenerateX25519()
	if err != nil {
		return nil, err
	}

	resp, err := c.writeHandshakeReq(conn, kp, snap)
	if err != nil {
		return nil, err
	}
	if resp.Code == StatusKdfSaltMismatch {
		if _, err := c.salt.Set(snap.RelaySecretKey, resp.KdfSaltB64); err != nil {
			return nil, fmt.Errorf("relay: apply kdf salt: %w", err)
		}
		resp, err = c.writeHandshakeReq(conn, kp, snap)
		if err != nil {
			return nil, err
		}
	}
	if resp.Code != StatusSuccess {
		return nil, fmt.Errorf("relay: handshake rejected: %s", resp.Msg)
	}

	rawPub, err := base64.StdEncoding.DecodeString(resp.EcdhPublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("relay: decode ecdh public key: %w", err)
	}

	if key, _, ok := c.salt.Cached(snap.RelaySecretKey); ok {
		authCipher, err := cryptoutil.NewGCMCipher(key)
		if err != nil {
			return nil, err
		}
		rawPub, err = authCipher.Open([]byte("AUTH"), rawPub)
		if err != nil {
			return nil, fmt.Errorf("relay: decrypt ecdh public key: %w", err)
		}
	}
	if len(rawPub) != 32 {
		return nil, errors.New("relay: ecdh public key must be 32 bytes")
	}
	var theirPublic [32]byte
	copy(theirPublic[:], rawPub)

	shared, err := cryptoutil.SharedSecret(&kp.PrivateKey, &theirPublic)
	if err != nil {
		return nil, err
	}
	sessionKey := cryptoutil.Aes192Key(shared[:])
	return cryptoutil.NewGCMCipher(sessionKey)
}

func (c *Client) writeHandshakeReq(conn net.Conn, kp *cryptoutil.X25519KeyPair, snap config.Snapshot) (*HandshakeResp, error) {
	req := HandshakeReq{EcdhPublicKeyB64: base64.StdEncoding.EncodeToString(kp.PublicKey[:])}

	if snap.RelaySecretKey != "" {
		if key, saltB64, ok := c.salt.Cached(snap.RelaySecretKey); ok {
			authCipher, err := cryptoutil.NewGCMCipher(key)
			if err != nil {
				return nil, err
			}
			req.SecretKeySelector = cryptoutil.KeySelector(key)
			req.KdfSaltB64 = saltB64
			aad := randHex(16)
			sealed, err := authCipher.Seal([]byte(aad), []byte("AUTH"+randHex(16)))
			if err != nil {
				return nil, err
			}
			req.AuthAAD = aad
			req.AuthFieldB64 = base64.StdEncoding.EncodeToString(sealed)
		} else {
			req.AuthFieldB64 = base64.StdEncoding.EncodeToString([]byte("fetch_salt"))
		}
	}

	if err := writeUnframed(conn, req); err != nil {
		return nil, err
	}
	var resp HandshakeResp
	if err := readUnframed(conn, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) sendConnectionReq(conn net.Conn, cipher *cryptoutil.GCMCipher, deviceID string) error {
	body := ConnectionReq{ID: deviceID}
	if err := writeSealed(conn, cipher, nil, body); err != nil {
		return err
	}
	var head RespHead
	if err := readSealed(conn, cipher, nil, &head); err != nil {
		return err
	}
	if head.Code != StatusSuccess {
		return fmt.Errorf("relay: connect rejected: %s", head.Msg)
	}
	if head.DataLen != 0 {
		return fmt.Errorf("relay: unexpected connect response body, len=%d", head.DataLen)
	}
	return nil
}

// multiplex implements §4.9 step 5 "multiplex loop".
func (c *Client) multiplex(ctx context.Context, conn net.Conn, cipher *cryptoutil.GCMCipher) {
	lastWasRelay := false
	for {
		timeout := idleTimeout
		if lastWasRelay {
			timeout = postRelayTimeout
		}
		conn.SetReadDeadline(time.Now().Add(timeout))

		var head CommonReqHead
		if err := readSealed(conn, cipher, nil, &head); err != nil {
			conn.Close()
			return
		}
		lastWasRelay = false

		switch head.Action {
		case ActionRelay:
			lastWasRelay = true
			next, err := c.handleRelay(conn)
			if err != nil {
				conn.Close()
				return
			}
			conn = next
		case ActionHeartbeat:
			if err := c.handleHeartbeat(conn, head, cipher); err != nil {
				conn.Close()
				return
			}
		default:
			if c.log != nil {
				c.log.Warn("relay: invalid multiplex action " + head.Action)
			}
			conn.Close()
			return
		}

		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}
	}
}

// handleRelay wraps the raw stream in TLS and runs it through the
// Dispatcher, returning the raw TCP connection once the tunnelled
// client session ends (§4.9 step 5 "Relay").
func (c *Client) handleRelay(conn net.Conn) (net.Conn, error) {
	tlsConn := tls.Server(conn, c.tlsConfig)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	err := c.dispatcher.Serve(tlsConn)
	if err != nil && !errors.Is(err, dispatch.ErrEndConnection) {
		return nil, err
	}
	return tlsConn.NetConn(), nil
}

func (c *Client) handleHeartbeat(conn net.Conn, head CommonReqHead, cipher *cryptoutil.GCMCipher) error {
	if head.DataLen == 0 {
		return nil
	}
	var req HeartbeatReq
	if err := readSealed(conn, cipher, nil, &req); err != nil {
		return err
	}
	if !req.NeedResp {
		return nil
	}
	resp := RespHead{Code: StatusSuccess, Action: ActionHeartbeat}
	return writeSealed(conn, cipher, nil, resp)
}

func randHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
