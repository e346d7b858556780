package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/doraemonkeys/windsend-go/internal/config"
	"github.com/doraemonkeys/windsend-go/internal/session"
	"github.com/doraemonkeys/windsend-go/internal/status"
	"github.com/doraemonkeys/windsend-go/internal/tlsutil"
	"github.com/doraemonkeys/windsend-go/internal/wire"
)

type stubClipboard struct {
	text  string
	files []string
}

func (c *stubClipboard) ReadText() (string, error)            { return c.text, nil }
func (c *stubClipboard) WriteText(text string) error          { c.text = text; return nil }
func (c *stubClipboard) ReadImage() (image.Image, bool, error) { return nil, false, nil }
func (c *stubClipboard) WriteImage(image.Image) error          { return nil }
func (c *stubClipboard) ReadFiles() ([]string, error)          { return c.files, nil }
func (c *stubClipboard) Clear() error                          { c.files = nil; return nil }

type stubNotifier struct{}

func (stubNotifier) Inform(title, body, openURL string) {}

func newTestService(t *testing.T) (*Service, *stubClipboard) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.Update(func(snap *config.Snapshot) { snap.SavePath = dir }); err != nil {
		t.Fatalf("cfg.Update: %v", err)
	}

	clip := &stubClipboard{}
	sess := session.NewManager(clip, stubNotifier{}, nil, nil)
	hub := status.NewHub()
	bundle := &tlsutil.Bundle{CACert: []byte("fake-ca-cert-pem")}

	return New(clip, stubNotifier{}, sess, cfg, hub, bundle, nil, nil), clip
}

type loopbackConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (c *loopbackConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *loopbackConn) Write(p []byte) (int, error) { return c.out.Write(p) }

func readResponse(t *testing.T, out *bytes.Buffer) (wire.ResponseHeader, []byte) {
	t.Helper()
	var head wire.ResponseHeader
	if err := wire.ReadHeader(out, &head); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	body := make([]byte, head.DataLen)
	if head.DataLen > 0 {
		if _, err := out.Read(body); err != nil {
			t.Fatalf("reading body: %v", err)
		}
	}
	return head, body
}

// TestPasteText covers S1: clipboard text becomes the sent string and
// the response matches {code:200, msg:"Paste success", dataType:"text"}.
func TestPasteText(t *testing.T) {
	svc, clip := newTestService(t)
	conn := &loopbackConn{in: bytes.NewBufferString("hello world"), out: &bytes.Buffer{}}

	err := svc.PasteText(conn, wire.RequestHeader{DataLen: int64(len("hello world"))})
	if err != nil {
		t.Fatalf("PasteText: %v", err)
	}
	if clip.text != "hello world" {
		t.Errorf("clipboard text = %q, want %q", clip.text, "hello world")
	}

	head, _ := readResponse(t, conn.out)
	if head.Code != wire.CodeSuccess || head.Msg != "Paste success" || head.DataType != wire.DataTypeText {
		t.Errorf("response header = %+v, want success/Paste success/text", head)
	}
}

// TestDownloadRange covers S4: a ranged download returns exactly the
// requested byte span.
func TestDownloadRange(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := make([]byte, 10*1024)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	conn := &loopbackConn{in: &bytes.Buffer{}, out: &bytes.Buffer{}}
	cont := svc.Download(conn, wire.RequestHeader{Path: path, Start: 4096, End: 6144})
	if !cont {
		t.Fatalf("Download reported failure")
	}

	head, body := readResponse(t, conn.out)
	if head.DataLen != 2048 {
		t.Errorf("DataLen = %d, want 2048", head.DataLen)
	}
	if !bytes.Equal(body, data[4096:6144]) {
		t.Errorf("body did not match requested byte range")
	}
}

// TestMatchClearsAllowToBeSearchedOnce covers S5: a match reply carries
// device identity and persists allow_to_be_searched_once=false.
func TestMatchClearsAllowToBeSearchedOnce(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.cfg.Update(func(snap *config.Snapshot) {
		snap.AllowToBeSearchedOnce = true
		snap.SecretKeyHex = "0123456789abcdef0123456789abcdef"
	}); err != nil {
		t.Fatal(err)
	}

	conn := &loopbackConn{in: &bytes.Buffer{}, out: &bytes.Buffer{}}
	addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:6779")
	if err := svc.Match(conn, addr); err != nil {
		t.Fatalf("Match: %v", err)
	}

	head, body := readResponse(t, conn.out)
	if head.Code != wire.CodeSuccess {
		t.Fatalf("response code = %d, want success", head.Code)
	}
	var resp wire.MatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal match response: %v", err)
	}
	if resp.SecretKeyHex != "0123456789abcdef0123456789abcdef" {
		t.Errorf("SecretKeyHex = %q, want the configured key", resp.SecretKeyHex)
	}

	if svc.cfg.Snapshot().AllowToBeSearchedOnce {
		t.Error("AllowToBeSearchedOnce should be cleared after a successful match")
	}
}
