// Package artifactstore implements the hash-addressed immutable byte store
// that backs raw fixture/HTTP artifacts: content is written once per unique
// SHA-256 hash, via a temp-file-then-rename sequence that is safe under
// concurrent writers.
package artifactstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoredArtifact describes the result of a store_bytes call.
type StoredArtifact struct {
	ContentHash   string
	RelativePath  string
	AbsolutePath  string
	ByteSize      int64
	Deduplicated  bool
}

// Store is a directory-rooted content-addressed byte store.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory is created if missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifactstore: creating root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// SHA256Hex computes the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// RelativePath derives the content-addressed path for an artifact, relative
// to the store root: "YYYYMMDD_HHMMSS/<source_id>/<content_hash>.<ext>".
func RelativePath(fetchedAt time.Time, sourceID, contentHash, extension string) string {
	stamp := fetchedAt.UTC().Format("20060102_150405")
	ext := strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(stamp, sourceID, contentHash+"."+ext)
}

// StoreBytes writes b under its content-addressed path, deduplicating by
// hash. The write is atomic: bytes land in a sibling temp file first, then
// are renamed into place; a rename race against another writer of the same
// content is treated as a successful dedup, not an error.
func (s *Store) StoreBytes(fetchedAt time.Time, sourceID, extension string, b []byte) (StoredArtifact, error) {
	hash := SHA256Hex(b)
	rel := RelativePath(fetchedAt, sourceID, hash, extension)
	abs := filepath.Join(s.root, rel)

	if _, err := os.Stat(abs); err == nil {
		return StoredArtifact{
			ContentHash:  hash,
			RelativePath: rel,
			AbsolutePath: abs,
			ByteSize:     int64(len(b)),
			Deduplicated: true,
		}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return StoredArtifact{}, fmt.Errorf("artifactstore: stat %s: %w", abs, err)
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredArtifact{}, fmt.Errorf("artifactstore: creating %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", uuid.NewString(), len(b)))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredArtifact{}, fmt.Errorf("artifactstore: creating temp file %s: %w", tmp, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return StoredArtifact{}, fmt.Errorf("artifactstore: writing temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return StoredArtifact{}, fmt.Errorf("artifactstore: flushing temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return StoredArtifact{}, fmt.Errorf("artifactstore: closing temp file %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, abs); err != nil {
		if _, statErr := os.Stat(abs); statErr == nil {
			os.Remove(tmp)
			return StoredArtifact{
				ContentHash:  hash,
				RelativePath: rel,
				AbsolutePath: abs,
				ByteSize:     int64(len(b)),
				Deduplicated: true,
			}, nil
		}
		os.Remove(tmp)
		return StoredArtifact{}, fmt.Errorf("artifactstore: renaming %s to %s: %w", tmp, abs, err)
	}

	return StoredArtifact{
		ContentHash:  hash,
		RelativePath: rel,
		AbsolutePath: abs,
		ByteSize:     int64(len(b)),
		Deduplicated: false,
	}, nil
}

// ExtensionForContentType maps a raw artifact's content type to the file
// extension used in its content-addressed path.
func ExtensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "html"):
		return "html"
	case strings.Contains(contentType, "json"):
		return "json"
	default:
		return "bin"
	}
}
