// Package adapters implements the per-source parsers that turn a
// FixtureBundle (or, for PublicHtml sources, a live-fetched page) into
// OpportunityDraft records with evidence attached to every populated field.
package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/davidclay/rhof-sync/internal/core"
)

// FixtureRawArtifact is the raw capture a fixture bundle carries: either
// inline text or a path to a sibling file, hydrated on load.
type FixtureRawArtifact struct {
	ContentType string  `json:"content_type"`
	Path        *string `json:"path,omitempty"`
	InlineText  *string `json:"inline_text,omitempty"`
	SHA256      *string `json:"sha256,omitempty"`
}

// FixtureField is the fixture-shape counterpart of core.Field: a value plus
// the selector/pointer and snippet used to derive it, but without an
// EvidenceRef (the bundle doesn't know its own raw_artifact_id yet).
type FixtureField[T any] struct {
	Value             *T     `json:"value,omitempty"`
	SelectorOrPointer string `json:"selector_or_pointer"`
	Snippet           string `json:"snippet"`
}

// FixtureParsedRecord is one hand-parsed record inside a bundle.
type FixtureParsedRecord struct {
	Title                    FixtureField[string]   `json:"title"`
	Description              FixtureField[string]   `json:"description"`
	PayModel                 FixtureField[string]   `json:"pay_model"`
	PayRateMin               FixtureField[float64]  `json:"pay_rate_min"`
	PayRateMax               FixtureField[float64]  `json:"pay_rate_max"`
	Currency                 FixtureField[string]   `json:"currency"`
	MinHoursPerWeek          FixtureField[float64]  `json:"min_hours_per_week"`
	VerificationRequirements FixtureField[string]   `json:"verification_requirements"`
	GeoConstraints           FixtureField[string]   `json:"geo_constraints"`
	OneOffVsOngoing          FixtureField[string]   `json:"one_off_vs_ongoing"`
	PaymentMethods           FixtureField[[]string] `json:"payment_methods"`
	ApplyURL                 FixtureField[string]   `json:"apply_url"`
	Requirements             FixtureField[[]string] `json:"requirements"`
	ListingURL               *string                `json:"listing_url,omitempty"`
	DetailURL                *string                `json:"detail_url,omitempty"`
}

// FixtureBundle is a checked-in capture of a source's raw artifact plus
// hand-parsed records: the test and seed input for every adapter.
type FixtureBundle struct {
	FixtureID              string                `json:"fixture_id"`
	SourceID               string                `json:"source_id"`
	Crawlability           core.Crawlability     `json:"crawlability"`
	CapturedFromURL        string                `json:"captured_from_url"`
	FetchedAt              time.Time             `json:"fetched_at"`
	ExtractorVersion       string                `json:"extractor_version"`
	RawArtifact            FixtureRawArtifact    `json:"raw_artifact"`
	ParsedRecords          []FixtureParsedRecord `json:"parsed_records"`
	EvidenceCoveragePercent float64              `json:"evidence_coverage_percent"`
	Notes                  *string               `json:"notes,omitempty"`
}

// LoadFixtureBundle reads a bundle from path and hydrates its raw artifact's
// inline text from a sibling file when the bundle itself only carries a
// relative path.
func LoadFixtureBundle(path string) (FixtureBundle, error) {
	bundle, err := readJSONFile(path)
	if err != nil {
		return FixtureBundle{}, err
	}
	if err := hydrateInlineRawArtifact(path, &bundle); err != nil {
		return FixtureBundle{}, err
	}
	return bundle, nil
}

// LoadManualFixtureBundle reads a manually-captured bundle. Manual captures
// normally carry inline_text directly; one that carries only a relative
// raw-artifact path is hydrated against the bundle file's own directory,
// the same way LoadFixtureBundle does.
func LoadManualFixtureBundle(path string) (FixtureBundle, error) {
	return LoadFixtureBundle(path)
}

func readJSONFile(path string) (FixtureBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FixtureBundle{}, fmt.Errorf("adapters: reading %s: %w", path, err)
	}
	var bundle FixtureBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return FixtureBundle{}, fmt.Errorf("adapters: parsing %s: %w", path, err)
	}
	return bundle, nil
}

func hydrateInlineRawArtifact(bundlePath string, bundle *FixtureBundle) error {
	if bundle.RawArtifact.InlineText != nil {
		return nil
	}
	if bundle.RawArtifact.Path == nil {
		return nil
	}
	rawPath := filepath.Join(filepath.Dir(bundlePath), *bundle.RawArtifact.Path)
	if _, err := os.Stat(rawPath); err != nil {
		return nil
	}
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("adapters: reading raw artifact %s: %w", rawPath, err)
	}
	text := string(raw)
	bundle.RawArtifact.InlineText = &text
	return nil
}

// DeterministicRawArtifactID derives a stable UUID-v5 for a bundle's raw
// artifact so repeated ingestion reuses the same id without DB coordination.
func DeterministicRawArtifactID(bundle FixtureBundle) string {
	pathPart := "<inline-artifact>"
	if bundle.RawArtifact.Path != nil {
		pathPart = *bundle.RawArtifact.Path
	}
	source := fmt.Sprintf("%s:%s:%s", bundle.SourceID, bundle.FixtureID, pathPart)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

func fixtureFieldToCore[T any](fx FixtureField[T], bundle FixtureBundle) core.Field[T] {
	if fx.Value == nil {
		return core.Empty[T]()
	}
	return core.WithValueAndEvidence(*fx.Value, core.EvidenceRef{
		RawArtifactID:     DeterministicRawArtifactID(bundle),
		SourceURL:         bundle.CapturedFromURL,
		SelectorOrPointer: fx.SelectorOrPointer,
		Snippet:           fx.Snippet,
		FetchedAt:         bundle.FetchedAt,
		ExtractorVersion:  bundle.ExtractorVersion,
	})
}

func bundleToDrafts(bundle FixtureBundle) []core.OpportunityDraft {
	drafts := make([]core.OpportunityDraft, 0, len(bundle.ParsedRecords))
	for _, record := range bundle.ParsedRecords {
		drafts = append(drafts, core.OpportunityDraft{
			SourceID:                 bundle.SourceID,
			ListingURL:               record.ListingURL,
			DetailURL:                record.DetailURL,
			FetchedAt:                bundle.FetchedAt,
			ExtractorVersion:         bundle.ExtractorVersion,
			Title:                    fixtureFieldToCore(record.Title, bundle),
			Description:              fixtureFieldToCore(record.Description, bundle),
			PayModel:                 fixtureFieldToCore(record.PayModel, bundle),
			PayRateMin:               fixtureFieldToCore(record.PayRateMin, bundle),
			PayRateMax:               fixtureFieldToCore(record.PayRateMax, bundle),
			Currency:                 fixtureFieldToCore(record.Currency, bundle),
			MinHoursPerWeek:          fixtureFieldToCore(record.MinHoursPerWeek, bundle),
			VerificationRequirements: fixtureFieldToCore(record.VerificationRequirements, bundle),
			GeoConstraints:           fixtureFieldToCore(record.GeoConstraints, bundle),
			OneOffVsOngoing:          fixtureFieldToCore(record.OneOffVsOngoing, bundle),
			PaymentMethods:           fixtureFieldToCore(record.PaymentMethods, bundle),
			ApplyURL:                 fixtureFieldToCore(record.ApplyURL, bundle),
			Requirements:             fixtureFieldToCore(record.Requirements, bundle),
		})
	}
	return drafts
}
