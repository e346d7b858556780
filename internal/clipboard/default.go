package clipboard

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned for clipboard content kinds the default
// adapter cannot represent (image and file-list clipboard formats are
// platform-specific; §1 treats "clipboard backend selection" as an
// external collaborator concern, so a richer Port can be substituted by
// whatever embeds this server).
var ErrUnsupported = errors.New("clipboard: content kind not supported by the default adapter")

// defaultPort serializes all clipboard access through a single mutex:
// the platform clipboard is not safe for concurrent access (§5).
type defaultPort struct {
	mu        sync.Mutex
	lastImage []byte // most recent PNG bytes WriteImage staged, readable back by ReadImage
}

// NewDefault returns the process-wide default ClipboardPort, backed by
// github.com/atotto/clipboard for text and an in-memory staging area for
// images (sufficient for syncText's echo-back behaviour in §4.7, but not
// a substitute for a real platform image clipboard).
func NewDefault() Port {
	return &defaultPort{}
}

func (p *defaultPort) ReadText() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", &ErrEmpty{Kind: "text"}
	}
	return text, nil
}

func (p *defaultPort) WriteText(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastImage = nil
	return clipboard.WriteAll(text)
}

func (p *defaultPort) ReadImage() (image.Image, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lastImage) == 0 {
		return nil, false, nil
	}
	img, err := png.Decode(bytes.NewReader(p.lastImage))
	if err != nil {
		return nil, false, err
	}
	return img, true, nil
}

func (p *defaultPort) WriteImage(img image.Image) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	p.lastImage = buf.Bytes()
	return nil
}

func (p *defaultPort) ReadFiles() ([]string, error) {
	return nil, ErrUnsupported
}

func (p *defaultPort) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastImage = nil
	return clipboard.WriteAll("")
}
