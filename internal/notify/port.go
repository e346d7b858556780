// Package notify defines the NotifierPort (§1) and a logging default
// implementation; the real OS toast/notification backend is an external
// collaborator out of scope for this core.
package notify

import (
	"regexp"

	"github.com/doraemonkeys/windsend-go/internal/observability"
)

// Port is the external notifier collaborator: inform(title, body,
// open_url?) from §1.
type Port interface {
	Inform(title, body string, openURL string)
}

// urlPattern extracts the first http(s) URL from inbound text, bounded
// to the first 300 characters, mirroring the pasteText notification's
// click-to-open affordance (§4.7).
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ExtractURL returns the first URL match in text truncated to 300 runes,
// or "" if none is found.
func ExtractURL(text string) string {
	if runes := []rune(text); len(runes) > 300 {
		text = string(runes[:300])
	}
	return urlPattern.FindString(text)
}

// logNotifier logs notifications through the structured logger instead
// of surfacing a platform toast, since the toast backend is out of
// scope (§1).
type logNotifier struct {
	log *observability.Logger
}

// NewLogNotifier returns a Port that records informational events via
// the supplied logger.
func NewLogNotifier(log *observability.Logger) Port {
	return &logNotifier{log: log}
}

func (n *logNotifier) Inform(title, body, openURL string) {
	n.log.Notification(title, body, openURL)
}
