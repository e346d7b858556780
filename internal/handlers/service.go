// Package handlers implements the Copy/Download (C5), Paste/Sync (C7),
// and Match (C8) action handlers the Dispatcher (C4) routes to.
package handlers

import (
	"sync"

	"github.com/doraemonkeys/windsend-go/internal/clipboard"
	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/notify"
	"github.com/doraemonkeys/windsend-go/internal/observability"
	"github.com/doraemonkeys/windsend-go/internal/session"
	"github.com/doraemonkeys/windsend-go/internal/status"
	"github.com/doraemonkeys/windsend-go/internal/tlsutil"
)

// Service bundles the collaborators every handler needs (§4.5-§4.8).
// It implements dispatch.Handlers by duck typing.
type Service struct {
	clip    clipboard.Port
	notify  notify.Port
	sess    *session.Manager
	cfg     *config.Store
	hub     *status.Hub
	bundle  *tlsutil.Bundle
	log     *observability.Logger
	metric  *observability.Metrics

	mu            sync.Mutex
	selectedFiles []string // tray-selected files (§4.5 priority 1); set by the out-of-scope tray UI
}

// New constructs a Service.
func New(clip clipboard.Port, notifier notify.Port, sess *session.Manager, cfg *config.Store, hub *status.Hub, bundle *tlsutil.Bundle, log *observability.Logger, metric *observability.Metrics) *Service {
	return &Service{
		clip:   clip,
		notify: notifier,
		sess:   sess,
		cfg:    cfg,
		hub:    hub,
		bundle: bundle,
		log:    log,
		metric: metric,
	}
}

// SetSelectedFiles replaces the tray-selected file set; called by the
// (out-of-scope) tray UI when the user picks files to send.
func (s *Service) SetSelectedFiles(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedFiles = paths
}

func (s *Service) takeSelectedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.selectedFiles
	s.selectedFiles = nil
	return files
}
