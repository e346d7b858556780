package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/doraemonkeys/windsend-go/internal/wire"
)

// maxCopyBufferSize bounds the download_handler's buffered copy (§4.5).
const maxCopyBufferSize = 30 * 1024 * 1024

// errEmptyManifest is returned by buildManifest when none of the input
// paths resolved to anything statable.
var errEmptyManifest = errors.New("handlers: copy manifest is empty")

// buildManifest walks paths, producing one ManifestEntry per file plus
// one per directory (with its descendants), per §4.5 "File manifest
// construction".
func buildManifest(paths []string) ([]wire.ManifestEntry, error) {
	var entries []wire.ManifestEntry
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			entries = append(entries, wire.ManifestEntry{
				Path: normalizeSlashes(p),
				Size: info.Size(),
				Type: "file",
			})
			continue
		}
		base := filepath.Base(p)
		entries = append(entries, wire.ManifestEntry{
			Path:     normalizeSlashes(p),
			Type:     "dir",
			SavePath: base,
		})
		_ = filepath.Walk(p, func(sub string, subInfo os.FileInfo, walkErr error) error {
			if walkErr != nil || sub == p {
				return nil
			}
			rel, err := filepath.Rel(p, sub)
			if err != nil {
				return nil
			}
			savePath := filepath.Join(base, rel)
			if !subInfo.IsDir() {
				savePath = filepath.Join(base, filepath.Dir(rel))
			}
			entries = append(entries, wire.ManifestEntry{
				Path:     normalizeSlashes(sub),
				Size:     subInfo.Size(),
				Type:     entryType(subInfo),
				SavePath: normalizeSlashes(savePath),
			})
			return nil
		})
	}
	if len(entries) == 0 {
		return nil, errEmptyManifest
	}
	return entries, nil
}

func entryType(info os.FileInfo) string {
	if info.IsDir() {
		return "dir"
	}
	return "file"
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// sendManifest replies with a dataType=files body.
func sendManifest(w io.Writer, entries []wire.ManifestEntry) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := wire.WriteHeader(w, wire.ResponseHeader{Code: wire.CodeSuccess, DataType: wire.DataTypeFiles, DataLen: int64(len(body))}); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func writeTextResponse(w io.Writer, text string) error {
	body := []byte(text)
	if err := wire.WriteHeader(w, wire.ResponseHeader{Code: wire.CodeSuccess, DataType: wire.DataTypeText, DataLen: int64(len(body))}); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func writeImageResponse(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := wire.WriteHeader(w, wire.ResponseHeader{Code: wire.CodeSuccess, DataType: wire.DataTypeClipImage, DataLen: int64(buf.Len())}); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Copy implements copy_handler (§4.5): tray selection, then clipboard
// files, then clipboard text, then clipboard image, in priority order.
func (s *Service) Copy(conn io.ReadWriter) error {
	if files := s.takeSelectedFiles(); len(files) > 0 {
		if entries, err := buildManifest(files); err == nil {
			if err := sendManifest(conn, entries); err != nil {
				return err
			}
			s.hub.ResetSelectedFiles.Send(struct{}{})
			return nil
		}
	}

	if files, err := s.clip.ReadFiles(); err == nil && len(files) > 0 {
		if entries, err := buildManifest(files); err == nil {
			if err := sendManifest(conn, entries); err != nil {
				return err
			}
			_ = s.clip.Clear()
			return nil
		}
	}

	if text, err := s.clip.ReadText(); err == nil {
		return writeTextResponse(conn, text)
	}

	if img, ok, err := s.clip.ReadImage(); err == nil && ok {
		return writeImageResponse(conn, img)
	}

	return wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: "clipboard is empty"})
}

// Download implements download_handler (§4.5): returns false (closes
// the connection) on any IO error, matching the dispatch table's
// "continues iff header write succeeded" rule.
func (s *Service) Download(conn io.ReadWriter, head wire.RequestHeader) bool {
	f, err := os.Open(head.Path)
	if err != nil {
		_ = wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeGeneralError, Msg: err.Error()})
		return false
	}
	defer f.Close()

	length := head.End - head.Start
	if err := wire.WriteHeader(conn, wire.ResponseHeader{Code: wire.CodeSuccess, DataType: wire.DataTypeBinary, DataLen: length}); err != nil {
		return false
	}

	if _, err := f.Seek(head.Start, io.SeekStart); err != nil {
		return false
	}
	bufSize := length
	if bufSize > maxCopyBufferSize || bufSize <= 0 {
		bufSize = maxCopyBufferSize
	}
	buf := make([]byte, bufSize)
	n, err := io.CopyBuffer(conn, io.LimitReader(f, length), buf)
	if err != nil {
		if s.log != nil {
			s.log.Error(err, "download copy failed")
		}
		return false
	}
	if n != length && s.log != nil {
		s.log.Warn("download short write")
	}
	if s.metric != nil {
		s.metric.DownloadBytesTotal.Add(float64(n))
	}
	return true
}
