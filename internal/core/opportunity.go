package core

import (
	"strings"
	"time"
)

// Crawlability describes how a source's listings can be obtained.
type Crawlability string

const (
	CrawlabilityPublicHTML  Crawlability = "PublicHtml"
	CrawlabilityAPI         Crawlability = "Api"
	CrawlabilityRSS         Crawlability = "Rss"
	CrawlabilityGated       Crawlability = "Gated"
	CrawlabilityManualOnly  Crawlability = "ManualOnly"
)

// OpportunityDraft is the pre-persistence shape an adapter emits. It is
// immutable once parsed; the orchestrator wraps it in a StagedOpportunity.
type OpportunityDraft struct {
	SourceID          string    `json:"source_id"`
	ListingURL        *string   `json:"listing_url,omitempty"`
	DetailURL         *string   `json:"detail_url,omitempty"`
	FetchedAt         time.Time `json:"fetched_at"`
	ExtractorVersion  string    `json:"extractor_version"`

	Title                     Field[string]   `json:"title"`
	Description               Field[string]   `json:"description"`
	PayModel                  Field[string]   `json:"pay_model"`
	PayRateMin                Field[float64]  `json:"pay_rate_min"`
	PayRateMax                Field[float64]  `json:"pay_rate_max"`
	Currency                  Field[string]   `json:"currency"`
	MinHoursPerWeek           Field[float64]  `json:"min_hours_per_week"`
	VerificationRequirements  Field[string]   `json:"verification_requirements"`
	GeoConstraints            Field[string]   `json:"geo_constraints"`
	OneOffVsOngoing           Field[string]   `json:"one_off_vs_ongoing"`
	PaymentMethods            Field[[]string] `json:"payment_methods"`
	ApplyURL                  Field[string]   `json:"apply_url"`
	Requirements              Field[[]string] `json:"requirements"`
}

// CanonicalKey derives the deterministic opportunity lookup key: the
// source id joined with a slug of the title, falling back to "untitled".
func CanonicalKey(d OpportunityDraft) string {
	title := d.Title.ValueOr("untitled")
	return d.SourceID + ":" + Slug(title)
}

// Slug lowercases ASCII letters/digits and replaces any run of
// non-alphanumeric characters with a single '-', trimming leading and
// trailing dashes.
func Slug(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// StagedOpportunity wraps a draft with dedup/enrichment state as it moves
// through the orchestrator's pipeline.
type StagedOpportunity struct {
	SourceID         string          `json:"source_id"`
	CanonicalKey     string          `json:"canonical_key"`
	VersionNo        int             `json:"version_no"`
	DedupConfidence  *float64        `json:"dedup_confidence,omitempty"`
	ReviewRequired   bool            `json:"review_required"`
	Tags             []string        `json:"tags"`
	RiskFlags        []string        `json:"risk_flags"`
	Draft            OpportunityDraft `json:"draft"`
}

// DedupClusterStatus enumerates the lifecycle of a proposed grouping.
type DedupClusterStatus string

const (
	DedupClusterProposed    DedupClusterStatus = "proposed"
	DedupClusterNeedsReview DedupClusterStatus = "needs_review"
	DedupClusterAccepted    DedupClusterStatus = "accepted"
	DedupClusterRejected    DedupClusterStatus = "rejected"
)

// DedupClusterProposal is an auto-cluster candidate emitted by the dedup
// engine, keyed by the sorted pair of canonical keys involved.
type DedupClusterProposal struct {
	ClusterKey       string
	CanonicalKeyA    string
	CanonicalKeyB    string
	ConfidenceScore  float64
}

// DedupReviewItem is a borderline pair routed to manual review.
type DedupReviewItem struct {
	ClusterKey       string
	CanonicalKeyA    string
	CanonicalKeyB    string
	ConfidenceScore  float64
}

// ReviewItemStatus enumerates a review item's lifecycle.
type ReviewItemStatus string

const (
	ReviewItemOpen     ReviewItemStatus = "open"
	ReviewItemResolved ReviewItemStatus = "resolved"
)

// FetchRunStatus enumerates a fetch run's lifecycle.
type FetchRunStatus string

const (
	FetchRunStarted   FetchRunStatus = "started"
	FetchRunCompleted FetchRunStatus = "completed"
	FetchRunFailed    FetchRunStatus = "failed"
)

// SyncRunSummary is the orchestrator's output for a single run_once call.
type SyncRunSummary struct {
	RunID            string     `json:"run_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	EnabledSources   int        `json:"enabled_sources"`
	FetchedArtifacts int        `json:"fetched_artifacts"`
	ParsedDrafts     int        `json:"parsed_drafts"`
	PersistedVersions int       `json:"persisted_versions"`
	ReportsDir       string     `json:"reports_dir"`
	ParquetManifest  string     `json:"parquet_manifest,omitempty"`
}

// SourceConfig is a registered source's configuration, as loaded from the
// source registry YAML.
type SourceConfig struct {
	SourceID           string       `yaml:"source_id" json:"source_id"`
	DisplayName        string       `yaml:"display_name" json:"display_name"`
	Enabled            bool         `yaml:"enabled" json:"enabled"`
	Crawlability       Crawlability `yaml:"crawlability" json:"crawlability"`
	Mode               string       `yaml:"mode" json:"mode"`
	ListingURLs        []string     `yaml:"listing_urls,omitempty" json:"listing_urls,omitempty"`
	DetailURLPatterns  []string     `yaml:"detail_url_patterns,omitempty" json:"detail_url_patterns,omitempty"`
	Notes              string       `yaml:"notes,omitempty" json:"notes,omitempty"`
}
