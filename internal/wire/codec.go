package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxHeaderLen bounds the length-prefixed JSON header (§4.1).
const MaxHeaderLen = 10 * 1024

// Protocol errors (§4.1, §7).
var (
	ErrFrameTooLarge = errors.New("wire: header length exceeds MaxHeaderLen")
	ErrShortRead     = errors.New("wire: short read while framing")
	ErrMalformedJSON = errors.New("wire: malformed header JSON")
)

// ReadHeader reads a `[u32 LE header_length][header JSON]` frame prefix
// and unmarshals the header into v. Returns ErrFrameTooLarge if the
// declared length exceeds MaxHeaderLen.
func ReadHeader(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	headerLen := binary.LittleEndian.Uint32(lenBuf[:])
	if headerLen > MaxHeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, headerLen)
	}
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// WriteHeader marshals v to JSON and writes it as a length-prefixed
// frame prefix. The caller is responsible for writing exactly
// DataLen/dataLen body bytes afterward, per the header's own length
// field.
func WriteHeader(w io.Writer, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(buf) > MaxHeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(buf))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
