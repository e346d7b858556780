package handlers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildManifestFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(filePath, []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	subdir := filepath.Join(dir, "photos")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nestedFile := filepath.Join(subdir, "a.png")
	if err := os.WriteFile(nestedFile, []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := buildManifest([]string{filePath, subdir})
	if err != nil {
		t.Fatalf("buildManifest: %v", err)
	}

	var gotFile, gotDir, gotNested bool
	for _, e := range entries {
		switch e.Path {
		case normalizeSlashes(filePath):
			gotFile = e.Type == "file" && e.Size == 2
		case normalizeSlashes(subdir):
			gotDir = e.Type == "dir" && e.SavePath == "photos"
		case normalizeSlashes(nestedFile):
			gotNested = e.Type == "file" && e.SavePath == "photos"
		}
	}
	if !gotFile {
		t.Errorf("missing or malformed top-level file entry in %+v", entries)
	}
	if !gotDir {
		t.Errorf("missing or malformed directory entry in %+v", entries)
	}
	if !gotNested {
		t.Errorf("missing or malformed nested file entry in %+v", entries)
	}
}

func TestBuildManifestEmptyOnMissingPaths(t *testing.T) {
	_, err := buildManifest([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	if err != errEmptyManifest {
		t.Errorf("buildManifest on a nonexistent path = %v, want errEmptyManifest", err)
	}
}
