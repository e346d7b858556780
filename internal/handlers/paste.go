package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/doraemonkeys/windsend-go/internal/notify"
	"github.com/doraemonkeys/windsend-go/internal/session"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func createEmptyDir(saveRoot, rel string) error {
	return os.MkdirAll(filepath.Join(saveRoot, rel), 0o755)
}

// Ping implements the ping action: an empty success reply.
func (s *Service) Ping(conn io.Writer, head wire.RequestHeader) error {
	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess, Msg: "pong"})
}

// PasteText implements the pasteText action (§4.7).
func (s *Service) PasteText(conn io.ReadWriter, head wire.RequestHeader) error {
	buf := make([]byte, head.DataLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}
	text := string(buf)
	if err := s.clip.WriteText(text); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}
	if s.notify != nil {
		s.notify.Inform("Clipboard updated", text, notify.ExtractURL(text))
	}
	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess, Msg: "Paste success", DataType: wire.DataTypeText})
}

// SyncText applies inbound text then echoes the current clipboard
// content back, image taking priority over text (§4.7).
func (s *Service) SyncText(conn io.ReadWriter, head wire.RequestHeader) error {
	buf := make([]byte, head.DataLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}
	if err := s.clip.WriteText(string(buf)); err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
	}

	if img, ok, err := s.clip.ReadImage(); err == nil && ok {
		return writeImageResponse(conn, img)
	}
	text, err := s.clip.ReadText()
	if err != nil {
		return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess, DataType: wire.DataTypeText, DataLen: 0})
	}
	return writeTextResponse(conn, text)
}

// uploadBufferSize implements the §4.7/§9 buffer-sizing heuristic:
// clamp(round_down(max(dataLen/8, 4MiB), 4KiB), lo=dataLen if dataLen <
// 4MiB else 4MiB, hi=8MiB).
func uploadBufferSize(dataLen int64) int {
	const (
		kib4 = 4 * 1024
		mib4 = 4 * 1024 * 1024
		mib8 = 8 * 1024 * 1024
	)
	size := dataLen / 8
	if size < mib4 {
		size = mib4
	}
	size = (size / kib4) * kib4
	if size > mib8 {
		size = mib8
	}
	lo := int64(mib4)
	if dataLen < mib4 {
		lo = dataLen
	}
	if size < lo {
		size = lo
	}
	if size <= 0 {
		size = kib4
	}
	return int(size)
}

var errPartRangeInvalid = errors.New("handlers: end must be >= start, and dataLen must equal end-start")

// PasteFile implements the pasteFile action's uploadInfo/file/dir
// sub-actions (§4.7). The returned bool matches the dispatch table's
// "continues iff part succeeded" rule.
func (s *Service) PasteFile(conn io.ReadWriter, head wire.RequestHeader) bool {
	switch head.UploadType {
	case "uploadInfo":
		return s.pasteUploadInfo(conn, head)
	case "file", "dir":
		return s.pasteFilePart(conn, head)
	default:
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: "unknown uploadType: " + head.UploadType})
		return false
	}
}

func (s *Service) pasteUploadInfo(conn io.ReadWriter, head wire.RequestHeader) bool {
	buf := make([]byte, head.DataLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		return false
	}
	var info wire.UploadOperationInfo
	if err := decodeJSON(buf, &info); err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		return false
	}

	snap := s.cfg.Snapshot()
	if err := s.sess.CreateOpInfo(head.OpID, head.DeviceName, info.FilesCountInThisOp, uint64(info.FilesSizeInThisOp)); err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		return false
	}

	for _, dir := range info.EmptyDirs {
		_ = createEmptyDir(snap.SavePath, dir)
	}
	if len(info.EmptyDirs) > 0 && info.FilesCountInThisOp == 0 && s.notify != nil {
		s.notify.Inform("Directory created", "", "")
	}
	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess}) == nil
}

func (s *Service) pasteFilePart(conn io.ReadWriter, head wire.RequestHeader) bool {
	if head.End < head.Start || head.DataLen != head.End-head.Start {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: errPartRangeInvalid.Error()})
		return false
	}

	snap := s.cfg.Snapshot()
	f, err := s.sess.SetupFileReception(head.FileID, head.OpID, snap.SavePath, head.Path, head.FileSize)
	if err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		return false
	}
	defer f.Close()

	writer, err := session.NewPartWriter(f, head.Start, head.End)
	if err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		s.sess.ReportFilePartCompletion(head.FileID, head.Start, head.End, err)
		return false
	}

	bufSize := uploadBufferSize(head.DataLen)
	n, copyErr := io.CopyBuffer(writer, io.LimitReader(conn, head.DataLen), make([]byte, bufSize))
	if copyErr == nil && n != head.DataLen {
		copyErr = io.ErrShortWrite
	}
	if copyErr != nil {
		s.sess.ReportFilePartCompletion(head.FileID, head.Start, head.End, copyErr)
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: copyErr.Error()})
		return false
	}

	if s.metric != nil {
		s.metric.UploadBytesTotal.Add(float64(n))
	}
	if s.log != nil {
		s.log.PartWritten(head.FileID, head.Start, head.End)
	}
	s.sess.ReportFilePartCompletion(head.FileID, head.Start, head.End, nil)
	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess}) == nil
}
