// Package snapshot exports a run's staged opportunities and source
// registry as columnar Parquet files plus an integrity manifest, so a
// downstream consumer can pull a consistent point-in-time snapshot
// without touching the relational store.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/davidclay/rhof-sync/internal/core"
)

const manifestSchemaVersion = 1

// ErrManifestMismatch is returned by VerifyManifest when a file's on-disk
// SHA-256 disagrees with its manifest entry.
var ErrManifestMismatch = errors.New("snapshot: manifest entry does not match file on disk")

type opportunityRow struct {
	SourceID        string   `parquet:"name=source_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	CanonicalKey    string   `parquet:"name=canonical_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title           *string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ApplyURL        *string  `parquet:"name=apply_url, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ReviewRequired  bool     `parquet:"name=review_required, type=BOOLEAN"`
	DedupConfidence *float64 `parquet:"name=dedup_confidence, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type opportunityVersionRow struct {
	CanonicalKey     string `parquet:"name=canonical_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	VersionNo        int32  `parquet:"name=version_no, type=INT32"`
	ExtractorVersion string `parquet:"name=extractor_version, type=BYTE_ARRAY, convertedtype=UTF8"`
	FetchedAt        string `parquet:"name=fetched_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type tagRow struct {
	CanonicalKey string `parquet:"name=canonical_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Tag          string `parquet:"name=tag, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type sourceRow struct {
	SourceID     string `parquet:"name=source_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	DisplayName  string `parquet:"name=display_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Crawlability string `parquet:"name=crawlability, type=BYTE_ARRAY, convertedtype=UTF8"`
	Enabled      bool   `parquet:"name=enabled, type=BOOLEAN"`
	Mode         string `parquet:"name=mode, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ManifestFile describes one exported Parquet file's integrity record.
type ManifestFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Manifest is the integrity manifest written alongside a run's snapshots.
type Manifest struct {
	SchemaVersion int            `json:"schema_version"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Files         []ManifestFile `json:"files"`
}

// WriteSnapshots exports opportunities.parquet, opportunity_versions.parquet,
// tags.parquet, and sources.parquet under dir, then writes manifest.json
// alongside them with a SHA-256 and byte size per file.
func WriteSnapshots(dir string, staged []core.StagedOpportunity, sources []core.SourceConfig, generatedAt time.Time) (Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: creating snapshot dir: %w", err)
	}

	type export struct {
		name string
		fn   func(path string) error
	}
	exports := []export{
		{"opportunities.parquet", func(path string) error { return writeOpportunities(path, staged) }},
		{"opportunity_versions.parquet", func(path string) error { return writeOpportunityVersions(path, staged) }},
		{"tags.parquet", func(path string) error { return writeTags(path, staged) }},
		{"sources.parquet", func(path string) error { return writeSources(path, sources) }},
	}

	manifest := Manifest{SchemaVersion: manifestSchemaVersion, GeneratedAt: generatedAt}
	for _, e := range exports {
		path := filepath.Join(dir, e.name)
		if err := e.fn(path); err != nil {
			return Manifest{}, fmt.Errorf("snapshot: writing %s: %w", e.name, err)
		}
		entry, err := manifestEntry(e.name, dir, path)
		if err != nil {
			return Manifest{}, err
		}
		manifest.Files = append(manifest.Files, entry)
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestBytes, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: writing manifest.json: %w", err)
	}

	return manifest, nil
}

// VerifyManifest recomputes the SHA-256 of every file the manifest
// references under dir and reports the first mismatch found, wrapping
// ErrManifestMismatch so callers can recover it with errors.Is.
func VerifyManifest(dir string, manifest Manifest) error {
	for _, f := range manifest.Files {
		bytes, err := os.ReadFile(filepath.Join(dir, f.Path))
		if err != nil {
			return fmt.Errorf("snapshot: reading %s for verification: %w", f.Path, err)
		}
		sum := sha256.Sum256(bytes)
		if hex.EncodeToString(sum[:]) != f.SHA256 {
			return fmt.Errorf("%w: %s", ErrManifestMismatch, f.Name)
		}
		if int64(len(bytes)) != f.Bytes {
			return fmt.Errorf("%w: %s (byte count)", ErrManifestMismatch, f.Name)
		}
	}
	return nil
}

func manifestEntry(name, dir, path string) (ManifestFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return ManifestFile{}, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	sum := sha256.Sum256(bytes)
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = path
	}
	return ManifestFile{
		Name:   name,
		Path:   rel,
		SHA256: hex.EncodeToString(sum[:]),
		Bytes:  int64(len(bytes)),
	}, nil
}

func writeOpportunities(path string, staged []core.StagedOpportunity) error {
	return withParquetWriter(path, new(opportunityRow), func(pw *writer.ParquetWriter) error {
		for _, item := range staged {
			row := opportunityRow{
				SourceID:        item.SourceID,
				CanonicalKey:    item.CanonicalKey,
				ReviewRequired:  item.ReviewRequired,
				DedupConfidence: item.DedupConfidence,
			}
			if item.Draft.Title.HasValue() {
				row.Title = item.Draft.Title.Value
			}
			if item.Draft.ApplyURL.HasValue() {
				row.ApplyURL = item.Draft.ApplyURL.Value
			}
			if err := pw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeOpportunityVersions(path string, staged []core.StagedOpportunity) error {
	return withParquetWriter(path, new(opportunityVersionRow), func(pw *writer.ParquetWriter) error {
		for _, item := range staged {
			row := opportunityVersionRow{
				CanonicalKey:     item.CanonicalKey,
				VersionNo:        int32(item.VersionNo),
				ExtractorVersion: item.Draft.ExtractorVersion,
				FetchedAt:        item.Draft.FetchedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeTags(path string, staged []core.StagedOpportunity) error {
	return withParquetWriter(path, new(tagRow), func(pw *writer.ParquetWriter) error {
		for _, item := range staged {
			for _, tag := range item.Tags {
				if err := pw.Write(tagRow{CanonicalKey: item.CanonicalKey, Tag: tag}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeSources(path string, sources []core.SourceConfig) error {
	return withParquetWriter(path, new(sourceRow), func(pw *writer.ParquetWriter) error {
		for _, src := range sources {
			row := sourceRow{
				SourceID:     src.SourceID,
				DisplayName:  src.DisplayName,
				Crawlability: string(src.Crawlability),
				Enabled:      src.Enabled,
				Mode:         src.Mode,
			}
			if err := pw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func withParquetWriter(path string, rowType any, fn func(pw *writer.ParquetWriter) error) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("opening parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, rowType, 4)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := fn(pw); err != nil {
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}
