package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doraemonkeys/windsend-go/internal/clipboard"
	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
	"github.com/doraemonkeys/windsend-go/internal/notify"
	"github.com/doraemonkeys/windsend-go/internal/observability"
)

// watchdogInterval is the per-file inactivity window (§4.6, §5).
const watchdogInterval = 10 * time.Minute

// progressTick is the polling period for the per-operation progress
// notifier (§4.6).
const progressTick = 500 * time.Millisecond

// maxStaleTicks bounds how long the progress notifier keeps polling an
// operation whose current_pos has stopped advancing (§4.6).
const maxStaleTicks = 150

// maxUniqueSuffix is the highest "(n)" suffix unique() will try before
// giving up (§4.6 "unique-path policy").
const maxUniqueSuffix = 99

// imageExts lists the extensions decodeAnyImage can actually decode;
// anything else is still accepted as an upload, just never auto-pasted.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true,
}

// singleImageClipboardLimit is the size ceiling below which a
// single-file, single-image upload is auto-pasted into the clipboard
// (§4.6).
const singleImageClipboardLimit = 4 * 1024 * 1024

// FilePart is a half-open byte range [Start,End) written by one upload
// request.
type FilePart struct {
	Start int64
	End   int64
}

// RecvFileInfo tracks one file currently being received (§3).
type RecvFileInfo struct {
	opID         uint32
	expectedSize int64
	savePath     string

	mu       sync.Mutex
	parts    []FilePart
	isDone   bool
	firstErr error
	done     chan bool // buffered 1, fires exactly once
}

// OpInfo tracks one client-declared upload operation bundling N files
// (§3). Progress counters are atomics so report_file_part_completion and
// the progress notifier never contend on a lock.
type OpInfo struct {
	StartTime        time.Time
	DeviceName       string
	ExpectedCount    int32
	TotalExpectation uint64

	successCount atomic.Int32
	failureCount atomic.Int32
	currentPos   atomic.Int64
	informPos    atomic.Int64
}

func (o *OpInfo) done() bool {
	return o.successCount.Load()+o.failureCount.Load() >= o.ExpectedCount
}

// Manager is the FileReceiveSessionManager singleton (§3): per-file and
// per-operation tables, both guarded by a single mutex (mirroring the
// reference implementation's asynchronous-mutex-protected maps).
type Manager struct {
	mu    sync.Mutex
	files map[uint32]*RecvFileInfo
	ops   map[uint32]*OpInfo

	clip   clipboard.Port
	notify notify.Port
	log    *observability.Logger
	metric *observability.Metrics
}

// NewManager constructs an empty session manager.
func NewManager(clip clipboard.Port, notifier notify.Port, log *observability.Logger, metric *observability.Metrics) *Manager {
	return &Manager{
		files:  make(map[uint32]*RecvFileInfo),
		ops:    make(map[uint32]*OpInfo),
		clip:   clip,
		notify: notifier,
		log:    log,
		metric: metric,
	}
}

// ErrOpExists is returned by CreateOpInfo when op_id is already tracked.
var ErrOpExists = errors.New("session: operation already exists")

// CreateOpInfo registers a new operation and starts its progress
// notifier (§4.6 create_op_info).
func (m *Manager) CreateOpInfo(opID uint32, deviceName string, expectedCount int32, totalExpectation uint64) error {
	m.mu.Lock()
	if _, exists := m.ops[opID]; exists {
		m.mu.Unlock()
		return ErrOpExists
	}
	op := &OpInfo{
		StartTime:        time.Now(),
		DeviceName:       deviceName,
		ExpectedCount:    expectedCount,
		TotalExpectation: totalExpectation,
	}
	m.ops[opID] = op
	m.mu.Unlock()

	if m.log != nil {
		m.log.UploadStarted(opID, deviceName, expectedCount, int64(totalExpectation))
	}
	go m.runProgressNotifier(opID, op)
	return nil
}

func (m *Manager) runProgressNotifier(opID uint32, op *OpInfo) {
	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()
	stale := 0
	for range ticker.C {
		cur := op.currentPos.Load()
		last := op.informPos.Swap(cur)
		if cur == last {
			stale++
		} else {
			stale = 0
		}
		if m.notify != nil && cur != last {
			m.notify.Inform(
				fmt.Sprintf("Receiving from %s", op.DeviceName),
				fmt.Sprintf("%d / %d bytes", cur, op.TotalExpectation),
				"",
			)
		}
		if uint64(cur) >= op.TotalExpectation || op.done() || stale >= maxStaleTicks {
			return
		}
	}
}

// ErrUniqueExhausted is returned by unique() when all p(1)..p(99)
// candidates are taken.
var ErrUniqueExhausted = errors.New("session: too many files with the same name")

// unique returns p if it does not already exist, else the first
// p(1)..p(99) candidate (extension preserved) that doesn't (§4.6
// "Unique-path policy").
func unique(p string) (string, error) {
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	dir := filepath.Dir(p)
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(filepath.Base(p), ext)
	for i := 1; i <= maxUniqueSuffix; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", ErrUniqueExhausted
}

// SetupFileReception opens (or reopens) the destination file for
// file_id, registering a fresh RecvFileInfo and monitor task on first
// use (§4.6 setup_file_reception).
func (m *Manager) SetupFileReception(fileID, opID uint32, saveRoot, relPath string, fileSize int64) (*os.File, error) {
	m.mu.Lock()
	if info, exists := m.files[fileID]; exists {
		m.mu.Unlock()
		f, err := os.OpenFile(info.savePath, os.O_RDWR, 0o600)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	m.mu.Unlock()

	target := filepath.Join(saveRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("session: create parent directories: %w", err)
	}
	actual, err := unique(target)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(actual, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("session: create %s: %w", actual, err)
	}
	if fileSize != 0 {
		if _, err := f.WriteAt([]byte{0}, fileSize-1); err != nil {
			f.Close()
			return nil, fmt.Errorf("session: preallocate %s: %w", actual, err)
		}
	}

	info := &RecvFileInfo{
		opID:         opID,
		expectedSize: fileSize,
		savePath:     actual,
		done:         make(chan bool, 1),
	}

	m.mu.Lock()
	m.files[fileID] = info
	if _, exists := m.ops[opID]; !exists {
		m.ops[opID] = &OpInfo{StartTime: time.Now(), ExpectedCount: 1, TotalExpectation: uint64(fileSize)}
	}
	m.mu.Unlock()

	go m.monitor(fileID, opID, info)
	return f, nil
}

// ReportFilePartCompletion records a finished part write and evaluates
// completeness (§4.6 report_file_part_completion). The returned bool
// pair is (done, errHappenedElsewhere), matching the reference
// implementation's return convention.
func (m *Manager) ReportFilePartCompletion(fileID uint32, start, end int64, recvErr error) (done bool, errElsewhere bool) {
	m.mu.Lock()
	info, ok := m.files[fileID]
	m.mu.Unlock()
	if !ok {
		return false, true
	}

	info.mu.Lock()
	defer info.mu.Unlock()
	if info.isDone {
		return true, false
	}
	if info.firstErr != nil {
		return false, true
	}
	if recvErr != nil {
		info.firstErr = recvErr
		select {
		case info.done <- false:
		default:
		}
		return false, false
	}

	info.parts = append(info.parts, FilePart{Start: start, End: end})
	complete := checkComplete(info.parts, info.expectedSize)

	m.mu.Lock()
	if op, exists := m.ops[info.opID]; exists {
		op.currentPos.Add(end - start)
	}
	m.mu.Unlock()

	if complete {
		info.isDone = true
		select {
		case info.done <- true:
		default:
		}
	}
	return complete, false
}

// checkComplete implements the completeness invariant of §3: parts
// sorted by start must begin at 0, cover every gap, and reach
// expectedSize.
func checkComplete(parts []FilePart, expectedSize int64) bool {
	sorted := make([]FilePart, len(parts))
	copy(sorted, parts)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Start > sorted[j].Start; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if len(sorted) == 0 || sorted[0].Start != 0 {
		return false
	}
	cur := int64(0)
	for i := range sorted {
		if sorted[i].End > cur {
			cur = sorted[i].End
		}
		if cur >= expectedSize {
			return true
		}
		if i+1 >= len(sorted) {
			return false
		}
		if cur < sorted[i+1].Start {
			return false
		}
	}
	return false
}

// monitor is the per-file watchdog task (§4.6). It exits on the file's
// completion signal or a 10-minute inactivity timeout, then removes the
// file's entry, updates the owning operation's counters, and — if the
// operation has now finished — emits a completion notification.
func (m *Manager) monitor(fileID, opID uint32, info *RecvFileInfo) {
	var success bool
	lastSize := int64(-1)
	timer := time.NewTimer(watchdogInterval)
	defer timer.Stop()

wait:
	select {
	case r := <-info.done:
		success = r
	case <-timer.C:
		st, err := os.Stat(info.savePath)
		size := int64(-1)
		if err == nil {
			size = st.Size()
		}
		if err != nil || size == lastSize {
			success = false
			break
		}
		lastSize = size
		timer.Reset(watchdogInterval)
		goto wait
	}

	m.mu.Lock()
	op := m.ops[opID]
	delete(m.files, fileID)
	m.mu.Unlock()

	if op == nil {
		return
	}
	if success {
		op.successCount.Add(1)
	} else {
		op.failureCount.Add(1)
	}

	if success && op.ExpectedCount == 1 && info.expectedSize < singleImageClipboardLimit && imageExts[strings.ToLower(filepath.Ext(info.savePath))] {
		m.pasteSingleImage(info.savePath)
	}

	if op.done() {
		m.mu.Lock()
		delete(m.ops, opID)
		m.mu.Unlock()

		succ, fail := op.successCount.Load(), op.failureCount.Load()
		if m.log != nil {
			m.log.UploadOperationCompleted(opID, succ, fail)
		}
		if m.notify != nil {
			body := fmt.Sprintf("%d file(s) saved", succ)
			if fail > 0 {
				body = fmt.Sprintf("%s, %d failed", body, fail)
			}
			m.notify.Inform("Upload complete", body, "")
		}
	}
	digest := ""
	if success {
		_, span := observability.StartSpan(context.Background(), "session.uploadComplete")
		digest = cryptoutil.FileDigest(info.savePath)
		span.End()
	}
	if m.log != nil {
		m.log.UploadFileCompleted(fileID, info.savePath, digest)
	}
}

func (m *Manager) pasteSingleImage(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if m.log != nil {
			m.log.Error(err, "read uploaded image for clipboard paste")
		}
		return
	}
	img, err := decodeAnyImage(data)
	if err != nil {
		if m.log != nil {
			m.log.Error(err, "decode uploaded image for clipboard paste")
		}
		return
	}
	if err := m.clip.WriteImage(img); err != nil && m.log != nil {
		m.log.Error(err, "write uploaded image to clipboard")
	}
}
