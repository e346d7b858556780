package session

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// decodeAnyImage decodes whichever of the registered formats (PNG/JPEG/
// GIF/BMP/WebP) matches data. ico uploads are still accepted as files;
// there's no ico decoder in the registered set, so they just aren't
// auto-pasted into the clipboard.
func decodeAnyImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
