package relay

import (
	"bytes"
	"testing"

	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
)

func TestUnframedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := HandshakeReq{EcdhPublicKeyB64: "abc123", KdfSaltB64: "saltsalt"}
	if err := writeUnframed(&buf, req); err != nil {
		t.Fatalf("writeUnframed: %v", err)
	}

	var got HandshakeReq
	if err := readUnframed(&buf, &got); err != nil {
		t.Fatalf("readUnframed: %v", err)
	}
	if got != req {
		t.Errorf("round trip = %+v, want %+v", got, req)
	}
}

func TestSealedRoundTripWithConnectionReq(t *testing.T) {
	key := cryptoutil.Aes192Key([]byte("another-shared-secret"))
	cipher, err := cryptoutil.NewGCMCipher(key)
	if err != nil {
		t.Fatalf("NewGCMCipher: %v", err)
	}

	var buf bytes.Buffer
	req := ConnectionReq{ID: "device-1"}
	if err := writeSealed(&buf, cipher, nil, req); err != nil {
		t.Fatalf("writeSealed: %v", err)
	}

	var got ConnectionReq
	if err := readSealed(&buf, cipher, nil, &got); err != nil {
		t.Fatalf("readSealed: %v", err)
	}
	if got != req {
		t.Errorf("round trip = %+v, want %+v", got, req)
	}
}

func TestSealedRoundTripWithGCMCipher(t *testing.T) {
	key := cryptoutil.Aes192Key([]byte("shared-secret-material"))
	cipher, err := cryptoutil.NewGCMCipher(key)
	if err != nil {
		t.Fatalf("NewGCMCipher: %v", err)
	}

	var buf bytes.Buffer
	req := HeartbeatReq{NeedResp: true}
	aad := []byte("heartbeat-aad")
	if err := writeSealed(&buf, cipher, aad, req); err != nil {
		t.Fatalf("writeSealed: %v", err)
	}

	var got HeartbeatReq
	if err := readSealed(&buf, cipher, aad, &got); err != nil {
		t.Fatalf("readSealed: %v", err)
	}
	if got != req {
		t.Errorf("round trip = %+v, want %+v", got, req)
	}
}

func TestSealedRejectsWrongAAD(t *testing.T) {
	key := cryptoutil.Aes192Key([]byte("shared-secret-material"))
	cipher, err := cryptoutil.NewGCMCipher(key)
	if err != nil {
		t.Fatalf("NewGCMCipher: %v", err)
	}

	var buf bytes.Buffer
	if err := writeSealed(&buf, cipher, []byte("correct-aad"), RespHead{Code: StatusSuccess}); err != nil {
		t.Fatalf("writeSealed: %v", err)
	}

	var got RespHead
	if err := readSealed(&buf, cipher, []byte("wrong-aad"), &got); err == nil {
		t.Error("expected readSealed to fail with mismatched AAD")
	}
}
