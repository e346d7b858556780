package session

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckComplete(t *testing.T) {
	cases := []struct {
		name     string
		parts    []FilePart
		expected int64
		want     bool
	}{
		{"empty", nil, 10, false},
		{"missing start", []FilePart{{Start: 1, End: 10}}, 10, false},
		{"exact single part", []FilePart{{Start: 0, End: 10}}, 10, true},
		{"two contiguous parts", []FilePart{{Start: 0, End: 4096}, {Start: 4096, End: 8192}}, 8192, true},
		{"two contiguous parts, reverse order", []FilePart{{Start: 4096, End: 8192}, {Start: 0, End: 4096}}, 8192, true},
		{"gap", []FilePart{{Start: 0, End: 10}, {Start: 20, End: 30}}, 30, false},
		{"overlap tolerated", []FilePart{{Start: 0, End: 6}, {Start: 4, End: 10}}, 10, true},
		{"short of expected size", []FilePart{{Start: 0, End: 5}}, 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := checkComplete(tc.parts, tc.expected); got != tc.want {
				t.Errorf("checkComplete(%v, %d) = %v, want %v", tc.parts, tc.expected, got, tc.want)
			}
		})
	}
}

func TestUniqueAppendsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := unique(target)
	if err != nil {
		t.Fatalf("unique: %v", err)
	}
	want := filepath.Join(dir, "photo(1).png")
	if got != want {
		t.Errorf("unique(%q) = %q, want %q", target, got, want)
	}
}

func TestUniqueReturnsOriginalWhenFree(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "new.txt")
	got, err := unique(target)
	if err != nil {
		t.Fatalf("unique: %v", err)
	}
	if got != target {
		t.Errorf("unique(%q) = %q, want unchanged", target, got)
	}
}

type stubClipboard struct {
	wroteImage image.Image
}

func (s *stubClipboard) ReadText() (string, error)            { return "", nil }
func (s *stubClipboard) WriteText(string) error                { return nil }
func (s *stubClipboard) ReadImage() (image.Image, bool, error) { return nil, false, nil }
func (s *stubClipboard) WriteImage(img image.Image) error {
	s.wroteImage = img
	return nil
}
func (s *stubClipboard) ReadFiles() ([]string, error) { return nil, nil }
func (s *stubClipboard) Clear() error                 { return nil }

type stubNotifier struct{ messages []string }

func (s *stubNotifier) Inform(title, body, openURL string) {
	s.messages = append(s.messages, title+": "+body)
}

// TestTwoPartUploadWritesContiguousFile covers S2: two parts bracket a
// known byte pattern and the resulting file must concatenate them in
// byte order regardless of completion-check bookkeeping.
func TestTwoPartUploadWritesContiguousFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(&stubClipboard{}, &stubNotifier{}, nil, nil)

	if err := m.CreateOpInfo(1, "phone", 1, 8192); err != nil {
		t.Fatalf("CreateOpInfo: %v", err)
	}

	f, err := m.SetupFileReception(7, 1, dir, "out.bin", 8192)
	if err != nil {
		t.Fatalf("SetupFileReception: %v", err)
	}

	writeRange := func(start, end int64, b byte) {
		w, err := NewPartWriter(f, start, end)
		if err != nil {
			t.Fatalf("NewPartWriter: %v", err)
		}
		if _, err := w.Write(bytes.Repeat([]byte{b}, int(end-start))); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	writeRange(0, 4096, 0xAA)
	writeRange(4096, 8192, 0xBB)
	f.Close()

	done1, elsewhere1 := m.ReportFilePartCompletion(7, 0, 4096, nil)
	if elsewhere1 {
		t.Fatalf("unexpected errElsewhere on first part")
	}
	if done1 {
		t.Fatalf("file reported done after only one of two parts")
	}
	done2, elsewhere2 := m.ReportFilePartCompletion(7, 4096, 8192, nil)
	if elsewhere2 {
		t.Fatalf("unexpected errElsewhere on second part")
	}
	if !done2 {
		t.Fatalf("file not reported done after both parts arrived")
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 8192 {
		t.Fatalf("file size = %d, want 8192", len(data))
	}
	if !bytes.Equal(data[:4096], bytes.Repeat([]byte{0xAA}, 4096)) {
		t.Errorf("first half mismatch")
	}
	if !bytes.Equal(data[4096:], bytes.Repeat([]byte{0xBB}, 4096)) {
		t.Errorf("second half mismatch")
	}
}

// TestOutOfOrderUploadOnlyCompletesOnCoveringPart covers S3: when the
// second half arrives first, is_done must stay false until the first
// half (which completes start==0 coverage) arrives.
func TestOutOfOrderUploadOnlyCompletesOnCoveringPart(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(&stubClipboard{}, &stubNotifier{}, nil, nil)
	if err := m.CreateOpInfo(2, "laptop", 1, 8192); err != nil {
		t.Fatalf("CreateOpInfo: %v", err)
	}
	if _, err := m.SetupFileReception(9, 2, dir, "out2.bin", 8192); err != nil {
		t.Fatalf("SetupFileReception: %v", err)
	}

	doneFirst, _ := m.ReportFilePartCompletion(9, 4096, 8192, nil)
	if doneFirst {
		t.Fatalf("reported done after only the tail part arrived")
	}
	doneSecond, _ := m.ReportFilePartCompletion(9, 0, 4096, nil)
	if !doneSecond {
		t.Fatalf("not reported done once the head part arrived")
	}
}

func TestPartWriterClampsToEndWithoutOverrun(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "clamped.bin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := NewPartWriter(f, 0, 4)
	if err != nil {
		t.Fatalf("NewPartWriter: %v", err)
	}
	n, err := w.Write([]byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4 {
		t.Errorf("Write returned n=%d, want 4 (clamped to [start,end))", n)
	}
}

func TestCreateOpInfoRejectsDuplicate(t *testing.T) {
	m := NewManager(&stubClipboard{}, &stubNotifier{}, nil, nil)
	if err := m.CreateOpInfo(5, "dev", 1, 100); err != nil {
		t.Fatalf("first CreateOpInfo: %v", err)
	}
	if err := m.CreateOpInfo(5, "dev", 1, 100); err != ErrOpExists {
		t.Errorf("second CreateOpInfo = %v, want ErrOpExists", err)
	}
}
