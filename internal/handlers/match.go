package handlers

import (
	"encoding/json"
	"io"
	"net"
	"os"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// Match implements the match/pairing handler (C8, §4.8): it is only
// reached when the dispatcher's quick-pair gate already let the
// unauthenticated request through.
func (s *Service) Match(conn io.ReadWriter, remoteAddr net.Addr) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	snap := s.cfg.Snapshot()

	resp := wire.MatchResponse{
		DeviceName:    hostname,
		SecretKeyHex:  snap.SecretKeyHex,
		CACertificate: string(s.bundle.CACert),
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}
	if err := wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess, DataLen: int64(len(body))}); err != nil {
		return err
	}
	if _, err := conn.Write(body); err != nil {
		return err
	}

	_ = s.cfg.Update(func(snap *config.Snapshot) {
		snap.AllowToBeSearchedOnce = false
	})
	s.hub.CloseQuickPair.Send(struct{}{})
	return nil
}
