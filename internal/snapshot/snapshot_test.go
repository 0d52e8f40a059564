package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davidclay/rhof-sync/internal/core"
)

func sampleStaged() []core.StagedOpportunity {
	confidence := 0.97
	return []core.StagedOpportunity{
		{
			SourceID:        "clickworker",
			CanonicalKey:    "clickworker:data-annotation-task",
			VersionNo:       1,
			DedupConfidence: &confidence,
			ReviewRequired:  false,
			Tags:            []string{"microtask", "data-labeling"},
			Draft: core.OpportunityDraft{
				SourceID:         "clickworker",
				FetchedAt:        time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
				ExtractorVersion: "v1",
				Title:            core.WithValueAndEvidence("Data Annotation Task", core.EvidenceRef{RawArtifactID: "a1"}),
				ApplyURL:         core.WithValueAndEvidence("https://example.test/apply", core.EvidenceRef{RawArtifactID: "a1"}),
			},
		},
		{
			SourceID:     "prolific",
			CanonicalKey: "prolific:untitled",
			VersionNo:    1,
			Tags:         nil,
			Draft: core.OpportunityDraft{
				SourceID:         "prolific",
				FetchedAt:        time.Date(2026, 7, 2, 9, 30, 0, 0, time.UTC),
				ExtractorVersion: "v1",
			},
		},
	}
}

func sampleSources() []core.SourceConfig {
	return []core.SourceConfig{
		{SourceID: "clickworker", DisplayName: "Clickworker", Enabled: true, Crawlability: core.CrawlabilityPublicHTML, Mode: "auto"},
		{SourceID: "prolific", DisplayName: "Prolific", Enabled: true, Crawlability: core.CrawlabilityManualOnly, Mode: "manual"},
	}
}

func TestWriteSnapshotsProducesAllFourFilesAndManifest(t *testing.T) {
	dir := t.TempDir()
	generatedAt := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	manifest, err := WriteSnapshots(dir, sampleStaged(), sampleSources(), generatedAt)
	if err != nil {
		t.Fatalf("WriteSnapshots returned error: %v", err)
	}

	wantNames := map[string]bool{
		"opportunities.parquet":         false,
		"opportunity_versions.parquet":  false,
		"tags.parquet":                  false,
		"sources.parquet":               false,
	}
	if len(manifest.Files) != len(wantNames) {
		t.Fatalf("manifest has %d files, want %d", len(manifest.Files), len(wantNames))
	}
	for _, f := range manifest.Files {
		if _, ok := wantNames[f.Name]; !ok {
			t.Errorf("unexpected manifest file %q", f.Name)
			continue
		}
		wantNames[f.Name] = true
		if f.SHA256 == "" {
			t.Errorf("file %q missing sha256", f.Name)
		}
		if f.Bytes <= 0 {
			t.Errorf("file %q has non-positive byte count %d", f.Name, f.Bytes)
		}
		if f.Path != f.Name {
			t.Errorf("file %q path = %q, want relative path equal to name", f.Name, f.Path)
		}
		if _, err := os.Stat(filepath.Join(dir, f.Path)); err != nil {
			t.Errorf("manifest references %q but it does not exist on disk: %v", f.Path, err)
		}
	}
	for name, seen := range wantNames {
		if !seen {
			t.Errorf("manifest missing expected file %q", name)
		}
	}

	if manifest.SchemaVersion != 1 {
		t.Errorf("manifest.SchemaVersion = %d, want 1", manifest.SchemaVersion)
	}
	if !manifest.GeneratedAt.Equal(generatedAt) {
		t.Errorf("manifest.GeneratedAt = %v, want %v", manifest.GeneratedAt, generatedAt)
	}
}

func TestManifestJSONIsWrittenAndParsable(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteSnapshots(dir, sampleStaged(), sampleSources(), time.Now().UTC()); err != nil {
		t.Fatalf("WriteSnapshots returned error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("reading manifest.json: %v", err)
	}
	var parsed Manifest
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("manifest.json does not parse: %v", err)
	}
	if len(parsed.Files) != 4 {
		t.Errorf("parsed manifest has %d files, want 4", len(parsed.Files))
	}
}

func TestWriteSnapshotsHandlesEmptyInput(t *testing.T) {
	dir := t.TempDir()
	manifest, err := WriteSnapshots(dir, nil, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("WriteSnapshots with empty input returned error: %v", err)
	}
	if len(manifest.Files) != 4 {
		t.Errorf("expected all 4 files even with no rows, got %d", len(manifest.Files))
	}
}

func TestVerifyManifestPassesForUntamperedFiles(t *testing.T) {
	dir := t.TempDir()
	manifest, err := WriteSnapshots(dir, sampleStaged(), sampleSources(), time.Now().UTC())
	if err != nil {
		t.Fatalf("WriteSnapshots returned error: %v", err)
	}
	if err := VerifyManifest(dir, manifest); err != nil {
		t.Errorf("VerifyManifest on untampered files returned error: %v", err)
	}
}

func TestVerifyManifestDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	manifest, err := WriteSnapshots(dir, sampleStaged(), sampleSources(), time.Now().UTC())
	if err != nil {
		t.Fatalf("WriteSnapshots returned error: %v", err)
	}

	tampered := filepath.Join(dir, "tags.parquet")
	if err := os.WriteFile(tampered, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("writing tampered file: %v", err)
	}

	err = VerifyManifest(dir, manifest)
	if err == nil {
		t.Fatal("expected VerifyManifest to detect the tampered file")
	}
	if !errors.Is(err, ErrManifestMismatch) {
		t.Errorf("expected error to wrap ErrManifestMismatch, got: %v", err)
	}
}

func TestWriteSnapshotsCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	if _, err := WriteSnapshots(dir, sampleStaged(), sampleSources(), time.Now().UTC()); err != nil {
		t.Fatalf("WriteSnapshots should create missing directories: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory %q to exist: %v", dir, err)
	}
}
