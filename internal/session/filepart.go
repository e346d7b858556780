// Package session implements the chunked-upload session engine (C6):
// per-file and per-operation tables, part-range bookkeeping, completion
// detection, and the inactivity watchdog (§3, §4.6).
package session

import (
	"io"
	"os"
)

// PartReader serves a byte range [start,end) of a file as a bounded
// reader. The file handle
// must not be shared with any other concurrent reader, since seeking is
// stateful (mirrors the single-owner-handle discipline of the original
// per-part reader).
type PartReader struct {
	r io.Reader
}

// NewPartReader seeks f to start and wraps the remaining [start,end)
// span as a bounded io.Reader.
func NewPartReader(f *os.File, start, end int64) (*PartReader, error) {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	return &PartReader{r: io.LimitReader(f, end-start)}, nil
}

func (p *PartReader) Read(buf []byte) (int, error) {
	return p.r.Read(buf)
}

// PartWriter writes a contiguous [start,end) span into a file handle
// dedicated to this part. It refuses to write past end.
//
// The reference implementation this is grounded on computed the
// end-clamp after already overwriting its position field, so the
// clamped slice was always empty and every write past the boundary
// silently wrote zero bytes instead of being truncated to fit. This
// clamps against the pre-mutation position instead.
type PartWriter struct {
	f   *os.File
	pos int64
	end int64
}

// NewPartWriter seeks f to start and returns a PartWriter bounded to
// [start,end). f must not be written to concurrently by anything else.
func NewPartWriter(f *os.File, start, end int64) (*PartWriter, error) {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	return &PartWriter{f: f, pos: start, end: end}, nil
}

func (w *PartWriter) Write(buf []byte) (int, error) {
	room := w.end - w.pos
	if room <= 0 {
		return 0, io.ErrShortWrite
	}
	if int64(len(buf)) > room {
		buf = buf[:room]
	}
	n, err := w.f.Write(buf)
	w.pos += int64(n)
	return n, err
}

func (w *PartWriter) Close() error {
	return w.f.Close()
}
