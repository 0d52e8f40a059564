package syncpipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davidclay/rhof-sync/internal/core"
)

func TestLoadSourceRegistryParsesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	contents := `
sources:
  - source_id: clickworker
    display_name: Clickworker
    enabled: true
    crawlability: PublicHtml
    mode: fixture
  - source_id: prolific
    display_name: Prolific
    enabled: true
    crawlability: ManualOnly
    mode: manual
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture registry: %v", err)
	}

	sources, err := LoadSourceRegistry(path)
	if err != nil {
		t.Fatalf("LoadSourceRegistry returned error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].SourceID != "clickworker" || sources[0].Crawlability != core.CrawlabilityPublicHTML {
		t.Errorf("sources[0] = %+v", sources[0])
	}
	if sources[1].SourceID != "prolific" || sources[1].Crawlability != core.CrawlabilityManualOnly {
		t.Errorf("sources[1] = %+v", sources[1])
	}
}

func TestLoadSourceRegistryExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DISPLAY_NAME", "Expanded Name")
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	contents := "sources:\n  - source_id: clickworker\n    display_name: ${TEST_DISPLAY_NAME}\n    enabled: true\n    crawlability: PublicHtml\n    mode: fixture\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture registry: %v", err)
	}

	sources, err := LoadSourceRegistry(path)
	if err != nil {
		t.Fatalf("LoadSourceRegistry returned error: %v", err)
	}
	if sources[0].DisplayName != "Expanded Name" {
		t.Errorf("DisplayName = %q, want env-expanded value", sources[0].DisplayName)
	}
}

func TestLoadSourceRegistryMissingFile(t *testing.T) {
	if _, err := LoadSourceRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing registry file")
	}
}

func TestBundlePathConventions(t *testing.T) {
	fixtureSrc := core.SourceConfig{SourceID: "clickworker", Mode: "fixture"}
	if got, want := bundlePath(fixtureSrc), filepath.Join("fixtures", "clickworker", "sample", "bundle.json"); got != want {
		t.Errorf("bundlePath(fixture) = %q, want %q", got, want)
	}

	manualSrc := core.SourceConfig{SourceID: "prolific", Mode: "manual"}
	if got, want := bundlePath(manualSrc), filepath.Join("manual", "prolific", "sample.json"); got != want {
		t.Errorf("bundlePath(manual) = %q, want %q", got, want)
	}
}
