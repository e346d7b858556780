package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := RequestHeader{Action: ActionPasteText, DataLen: 11}
	if err := WriteHeader(&buf, &req); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	body := []byte("hello world")
	buf.Write(body)

	var got RequestHeader
	if err := ReadHeader(&buf, &got); err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if got.Action != req.Action || got.DataLen != req.DataLen {
		t.Errorf("round trip mismatch: got %+v want %+v", got, req)
	}
	rest := make([]byte, len(body))
	if _, err := buf.Read(rest); err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	if !bytes.Equal(rest, body) {
		t.Errorf("body mismatch: got %q want %q", rest, body)
	}
}

func TestReadHeaderRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	// Fabricate a header-length prefix larger than MaxHeaderLen.
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0x00})
	var got RequestHeader
	err := ReadHeader(&buf, &got)
	if err == nil {
		t.Fatal("expected ErrFrameTooLarge")
	}
}

func TestExactFrameConsumption(t *testing.T) {
	var buf bytes.Buffer
	req := RequestHeader{Action: ActionPing, DataLen: 5}
	if err := WriteHeader(&buf, &req); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	headerLen := buf.Len()
	buf.WriteString("12345")
	buf.WriteString("TRAILING")

	r := strings.NewReader(buf.String())
	var got RequestHeader
	if err := ReadHeader(r, &got); err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	body := make([]byte, got.DataLen)
	if _, err := r.Read(body); err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	remaining := make([]byte, r.Len())
	r.Read(remaining)
	if string(remaining) != "TRAILING" {
		t.Errorf("decoder consumed more than 4+header_len+L bytes: left %q", remaining)
	}
	_ = headerLen
}
