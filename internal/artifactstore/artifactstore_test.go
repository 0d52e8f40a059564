package artifactstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSHA256HexIsStable(t *testing.T) {
	got := SHA256Hex([]byte("hello world"))
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("sha256hex(hello world) = %s, want %s", got, want)
	}
}

func TestStoreBytesDeduplicatesByHash(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fetchedAt := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	body := []byte("<html><body>clickworker listing</body></html>")

	first, err := store.StoreBytes(fetchedAt, "clickworker", "html", body)
	if err != nil {
		t.Fatalf("first StoreBytes: %v", err)
	}
	if first.Deduplicated {
		t.Fatal("first store should not be deduplicated")
	}

	second, err := store.StoreBytes(fetchedAt, "clickworker", "html", body)
	if err != nil {
		t.Fatalf("second StoreBytes: %v", err)
	}
	if !second.Deduplicated {
		t.Fatal("second store of identical bytes should be deduplicated")
	}
	if first.ContentHash != second.ContentHash {
		t.Fatalf("content hash mismatch: %s != %s", first.ContentHash, second.ContentHash)
	}
	if first.RelativePath != second.RelativePath {
		t.Fatalf("relative path mismatch: %s != %s", first.RelativePath, second.RelativePath)
	}

	entries, err := os.ReadDir(filepath.Dir(first.AbsolutePath))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	fileCount := 0
	for _, e := range entries {
		if !e.IsDir() {
			fileCount++
		}
	}
	if fileCount != 1 {
		t.Fatalf("expected exactly one file in %s, got %d", filepath.Dir(first.AbsolutePath), fileCount)
	}
}

func TestRelativePathLayout(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	got := RelativePath(fetchedAt, "clickworker", "deadbeef", ".html")
	want := filepath.Join("20260224_120000", "clickworker", "deadbeef.html")
	if got != want {
		t.Fatalf("RelativePath = %s, want %s", got, want)
	}
}

func TestExtensionForContentType(t *testing.T) {
	cases := map[string]string{
		"text/html; charset=utf-8": "html",
		"application/json":         "json",
		"application/pdf":          "bin",
	}
	for ct, want := range cases {
		if got := ExtensionForContentType(ct); got != want {
			t.Fatalf("ExtensionForContentType(%q) = %s, want %s", ct, got, want)
		}
	}
}
