package handlers

import (
	"encoding/json"
	"io"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// relayServerUpdate is the JSON body of a setRelayServer request: the
// new relay endpoint, password, and enable flag to persist.
type relayServerUpdate struct {
	RelayServerAddress string `json:"relayServerAddress"`
	RelaySecretKey     string `json:"relaySecretKey"`
	EnableRelay        bool   `json:"enableRelay"`
}

// SetRelayServer implements the setRelayServer action (§4.4, §4.9): it
// persists the new relay configuration and wakes the relay client's
// outer retry loop so the change applies without waiting out the
// current backoff.
func (s *Service) SetRelayServer(conn io.ReadWriter, head wire.RequestHeader) error {
	buf := make([]byte, head.DataLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}
	var update relayServerUpdate
	if err := json.Unmarshal(buf, &update); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}

	if err := s.cfg.Update(func(snap *config.Snapshot) {
		snap.RelayServerAddress = update.RelayServerAddress
		snap.RelaySecretKey = update.RelaySecretKey
		snap.EnableRelay = update.EnableRelay
	}); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}

	s.hub.RelayConfigChanged.Send(struct{}{})
	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess})
}
