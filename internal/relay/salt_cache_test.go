package relay

import (
	"encoding/base64"
	"testing"

	"github.com/doraemonkeys/windsend-go/internal/cryptoutil"
)

func TestSaltCacheMissBeforeSet(t *testing.T) {
	var c SaltCache
	if _, _, ok := c.Cached("secret"); ok {
		t.Error("expected Cached to miss on an empty cache")
	}
	if _, _, ok := c.Cached(""); ok {
		t.Error("expected Cached to miss for an empty password")
	}
}

func TestSaltCacheSetThenCachedHit(t *testing.T) {
	var c SaltCache
	salt, err := cryptoutil.RandomSalt()
	if err != nil {
		t.Fatalf("RandomSalt: %v", err)
	}
	saltB64 := base64.StdEncoding.EncodeToString(salt)

	key, err := c.Set("hunter2", saltB64)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(key) != 24 {
		t.Fatalf("derived key length = %d, want 24", len(key))
	}

	gotKey, gotSalt, ok := c.Cached("hunter2")
	if !ok {
		t.Fatal("expected Cached to hit after Set")
	}
	if gotSalt != saltB64 {
		t.Errorf("cached salt = %q, want %q", gotSalt, saltB64)
	}
	if string(gotKey) != string(key) {
		t.Error("cached key does not match the key returned by Set")
	}
}

func TestSaltCacheMissOnPasswordChange(t *testing.T) {
	var c SaltCache
	salt, err := cryptoutil.RandomSalt()
	if err != nil {
		t.Fatalf("RandomSalt: %v", err)
	}
	saltB64 := base64.StdEncoding.EncodeToString(salt)
	if _, err := c.Set("hunter2", saltB64); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, _, ok := c.Cached("different-password"); ok {
		t.Error("expected Cached to miss once the password no longer matches")
	}
}
