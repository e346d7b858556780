package dispatch

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/observability"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// Handlers is the set of action handlers the dispatcher routes to
// (C5/C7/C8). PasteFile and Download return whether the connection
// should continue to the next header read; for the other actions route
// decides that from the action itself, per the table in §4.4 step 3.
type Handlers interface {
	Ping(conn io.Writer, head wire.RequestHeader) error
	PasteText(conn io.ReadWriter, head wire.RequestHeader) error
	PasteFile(conn io.ReadWriter, head wire.RequestHeader) bool
	Copy(conn io.ReadWriter) error
	Download(conn io.ReadWriter, head wire.RequestHeader) bool
	Match(conn io.ReadWriter, remoteAddr net.Addr) error
	SyncText(conn io.ReadWriter, head wire.RequestHeader) error
	SetRelayServer(conn io.ReadWriter, head wire.RequestHeader) error
}

// Conn is the minimal surface the dispatcher needs from a connection:
// framed read/write plus the two addresses the time-IP check compares
// against.
type Conn interface {
	io.ReadWriter
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// ErrEndConnection is returned by Serve when the peer sent
// endConnection (§4.4 step 3): the caller should treat the underlying
// socket as cleanly released rather than as a failure, and — if the
// connection originated from the relay client — return it to the relay
// loop instead of closing it.
var ErrEndConnection = errors.New("dispatch: peer requested endConnection")

// Dispatcher implements C4: read one header, authenticate, dispatch,
// repeat until a handler signals the connection is done.
type Dispatcher struct {
	handlers    Handlers
	configStore *config.Store
	log         *observability.Logger
	metric      *observability.Metrics
	allowSearch func() bool
}

// New constructs a Dispatcher. allowSearch reads the current
// quick-pair gate (mutated by the match handler and by the tray UI's
// "allow to be found" toggle).
func New(handlers Handlers, configStore *config.Store, log *observability.Logger, metric *observability.Metrics, allowSearch func() bool) *Dispatcher {
	return &Dispatcher{
		handlers:    handlers,
		configStore: configStore,
		log:         log,
		metric:      metric,
		allowSearch: allowSearch,
	}
}

// Serve runs the read-auth-dispatch loop over conn until a handler
// closes the connection, the peer disconnects, or an unrecoverable
// protocol/auth error occurs.
func (d *Dispatcher) Serve(conn Conn) error {
	snap := d.configStore.Snapshot()
	cipher, err := cryptoutil.NewCBCFollowedCipher(mustKey(snap))
	if err != nil {
		return err
	}

	for {
		var head wire.RequestHeader
		if err := wire.ReadHeader(conn, &head); err != nil {
			return err
		}

		if err := authenticate(&head, conn.LocalAddr(), conn.RemoteAddr(), d.allowSearch(), snap, cipher); err != nil {
			if d.log != nil {
				d.log.AuthRejected(conn.RemoteAddr().String(), err.Error())
			}
			if d.metric != nil {
				d.metric.AuthRejectedTotal.WithLabelValues("unauthorized").Inc()
			}
			_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeUnauthorized, Msg: "unauthorized"})
			return err
		}

		cont, endConn, err := d.route(conn, head)
		if err != nil {
			return err
		}
		if endConn {
			return ErrEndConnection
		}
		if !cont {
			return nil
		}
	}
}

func (d *Dispatcher) route(conn io.ReadWriter, head wire.RequestHeader) (cont bool, endConn bool, err error) {
	_, span := observability.StartSpan(context.Background(), "dispatch."+head.Action)
	defer span.End()

	switch head.Action {
	case wire.ActionPing:
		return true, false, d.handlers.Ping(conn, head)
	case wire.ActionPasteText:
		return true, false, d.handlers.PasteText(conn, head)
	case wire.ActionPasteFile:
		return d.handlers.PasteFile(conn, head), false, nil
	case wire.ActionCopy:
		return false, false, d.handlers.Copy(conn)
	case wire.ActionDownload:
		return d.handlers.Download(conn, head), false, nil
	case wire.ActionMatch:
		remote, _ := conn.(Conn)
		var addr net.Addr
		if remote != nil {
			addr = remote.RemoteAddr()
		}
		return false, false, d.handlers.Match(conn, addr)
	case wire.ActionSyncText:
		return true, false, d.handlers.SyncText(conn, head)
	case wire.ActionSetRelayServer:
		return true, false, d.handlers.SetRelayServer(conn, head)
	case wire.ActionEndConnection:
		return false, true, nil
	default:
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: "unknown action: " + head.Action})
		return false, false, nil
	}
}

func mustKey(snap config.Snapshot) []byte {
	key, err := snap.SecretKey()
	if err != nil {
		// A malformed secret_key_hex cannot be recovered from
		// mid-connection; callers validate config at startup so this
		// path is unreachable in practice.
		return make([]byte, 32)
	}
	return key
}
