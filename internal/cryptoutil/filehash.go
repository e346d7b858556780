package cryptoutil

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// FileDigest computes the BLAKE3 digest of a file on disk, returned as a
// lowercase hex string. Used by the upload monitor task to log an audit
// hash once a file finishes receiving; returns "" if the file cannot be
// read, since a missing audit hash should never fail an otherwise
// successful upload.
func FileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 1<<20)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return ""
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
