package syncpipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/davidclay/rhof-sync/internal/core"
)

type sourceRegistryFile struct {
	Sources []core.SourceConfig `yaml:"sources"`
}

// LoadSourceRegistry reads the source registry YAML at path, expanding
// environment variable references before unmarshalling, matching the
// sibling ingestion package's LoadRegistry convention.
func LoadSourceRegistry(path string) ([]core.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("syncpipeline: reading source registry %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var file sourceRegistryFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("syncpipeline: parsing source registry %s: %w", path, err)
	}
	return file.Sources, nil
}

// bundlePath derives the fixture bundle's on-disk path for a registered
// source: fixture-mode sources live under fixtures/<source_id>/sample/,
// manual-mode sources live under manual/<source_id>/, matching the two
// checked-in directory conventions.
func bundlePath(src core.SourceConfig) string {
	if src.Mode == "manual" {
		return filepath.Join("manual", src.SourceID, "sample.json")
	}
	return filepath.Join("fixtures", src.SourceID, "sample", "bundle.json")
}
