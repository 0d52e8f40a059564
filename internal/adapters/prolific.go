package adapters

import (
	"context"
	"fmt"

	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/httpfetch"
)

// prolificAdapter is ManualOnly: its fixture is hand-curated rather than
// crawled, and its raw artifact (when present) is a JSON capture rather
// than HTML, so its override pass runs the JSON extraction path.
type prolificAdapter struct{}

// NewProlificAdapter returns the prolific ManualOnly adapter.
func NewProlificAdapter() SourceAdapter {
	return prolificAdapter{}
}

func (prolificAdapter) SourceID() string               { return "prolific" }
func (prolificAdapter) Crawlability() core.Crawlability { return core.CrawlabilityManualOnly }

func (a prolificAdapter) FetchListing(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []ListingTarget) ([]FetchedPage, error) {
	return noopFetchListing(ctx, f, actx, targets)
}

func (a prolificAdapter) FetchDetail(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []DetailTarget) ([]FetchedPage, error) {
	return noopFetchDetail(ctx, f, actx, targets)
}

func (a prolificAdapter) ParseListing(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	if err := requireSourceMatch(bundle, a.SourceID()); err != nil {
		return nil, err
	}
	drafts := bundleToDrafts(bundle)
	if bundle.RawArtifact.InlineText == nil || len(drafts) == 0 {
		return drafts, nil
	}

	switch bundle.RawArtifact.ContentType {
	case "application/pdf":
		// A captured eligibility/terms PDF rather than a JSON payload: pull
		// its text and fold it in as a verification-requirements override.
		text, err := ExtractPDFText([]byte(*bundle.RawArtifact.InlineText))
		if err != nil {
			return nil, fmt.Errorf("adapters: extracting prolific pdf capture: %w", err)
		}
		pdfEligibilityOverride(text).applyTo(&drafts[0], bundle)
	default:
		if overrides, ok := extractJSONOverrides(*bundle.RawArtifact.InlineText); ok {
			overrides.applyTo(&drafts[0], bundle)
		}
	}
	return drafts, nil
}

func (a prolificAdapter) ParseDetail(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	return a.ParseListing(bundle)
}
