package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
)

// ErrDecryptFailed wraps a relay-channel authentication failure (§4.1, §7).
type ErrDecryptFailed struct{ Cause error }

func (e *ErrDecryptFailed) Error() string { return fmt.Sprintf("wire: decrypt failed: %v", e.Cause) }
func (e *ErrDecryptFailed) Unwrap() error { return e.Cause }

// ReadSealed reads a length-prefixed `[12-byte nonce][ciphertext][16-byte
// tag]` unit from the relay channel and authenticates+decrypts it with
// aad (empty for data frames, "AUTH" for the handshake's ECDH public-key
// payload, per §4.1).
func ReadSealed(r io.Reader, c *cryptoutil.GCMCipher, aad []byte) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxHeaderLen*4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	sealed := make([]byte, n)
	if _, err := io.ReadFull(r, sealed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	plaintext, err := c.Open(aad, sealed)
	if err != nil {
		return nil, &ErrDecryptFailed{Cause: err}
	}
	return plaintext, nil
}

// WriteSealed encrypts plaintext under c with aad and writes it as a
// length-prefixed sealed unit.
func WriteSealed(w io.Writer, c *cryptoutil.GCMCipher, aad, plaintext []byte) error {
	sealed, err := c.Seal(aad, plaintext)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(sealed)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(sealed)
	return err
}
