// Package clipboard defines the ClipboardPort the core depends on (§1)
// and a default implementation backed by the host OS clipboard.
package clipboard

import "image"

// Port is the external collaborator interface the copy/paste handlers
// (C5, C7) use; the tray UI, platform backend selection, and actual
// pixel/format conversion are deliberately out of scope (§1) and left to
// whatever Port implementation is wired in.
type Port interface {
	ReadText() (string, error)
	WriteText(text string) error
	ReadImage() (image.Image, bool, error)
	WriteImage(img image.Image) error
	ReadFiles() ([]string, error)
	Clear() error
}

// ErrEmpty is returned by Read* methods when the clipboard holds no
// content of the requested kind, letting copy_handler fall through to
// the next content type in priority order (§4.5).
type ErrEmpty struct{ Kind string }

func (e *ErrEmpty) Error() string { return "clipboard: no " + e.Kind + " content available" }
