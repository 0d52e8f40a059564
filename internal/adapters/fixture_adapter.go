package adapters

import (
	"context"

	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/httpfetch"
)

// fixtureFirstAdapter is the generic fixture-to-draft adapter shared by
// clickworker, oneforma-jobs, and telus-ai-community: it converts every
// parsed_records entry to a draft, then runs the full HTML override pass
// (all thirteen fields in §4.4 step 3) over the bundle's inline raw HTML,
// when present, applying overrides onto the first draft.
type fixtureFirstAdapter struct {
	sourceID     string
	crawlability core.Crawlability
}

func (a fixtureFirstAdapter) SourceID() string               { return a.sourceID }
func (a fixtureFirstAdapter) Crawlability() core.Crawlability { return a.crawlability }

// FetchListing crawls the source's declared listing_urls with colly when
// targets are supplied; fixture-only test runs pass no targets and get the
// same empty result as before.
func (a fixtureFirstAdapter) FetchListing(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []ListingTarget) ([]FetchedPage, error) {
	return crawlListing(ctx, f, actx, targets)
}

func (a fixtureFirstAdapter) FetchDetail(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []DetailTarget) ([]FetchedPage, error) {
	return noopFetchDetail(ctx, f, actx, targets)
}

func (a fixtureFirstAdapter) ParseListing(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	if err := requireSourceMatch(bundle, a.sourceID); err != nil {
		return nil, err
	}
	drafts := bundleToDrafts(bundle)
	if bundle.RawArtifact.InlineText != nil && len(drafts) > 0 {
		if overrides, ok := extractHTMLOverrides(*bundle.RawArtifact.InlineText); ok {
			overrides.applyTo(&drafts[0], bundle)
		}
	}
	return drafts, nil
}

func (a fixtureFirstAdapter) ParseDetail(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	return a.ParseListing(bundle)
}

// NewClickworkerAdapter returns the clickworker PublicHtml adapter.
func NewClickworkerAdapter() SourceAdapter {
	return fixtureFirstAdapter{sourceID: "clickworker", crawlability: core.CrawlabilityPublicHTML}
}

// NewOneformaJobsAdapter returns the oneforma-jobs PublicHtml adapter.
func NewOneformaJobsAdapter() SourceAdapter {
	return fixtureFirstAdapter{sourceID: "oneforma-jobs", crawlability: core.CrawlabilityPublicHTML}
}

// NewTelusAICommunityAdapter returns the telus-ai-community PublicHtml adapter.
func NewTelusAICommunityAdapter() SourceAdapter {
	return fixtureFirstAdapter{sourceID: "telus-ai-community", crawlability: core.CrawlabilityPublicHTML}
}
