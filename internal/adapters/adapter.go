package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/httpfetch"
)

// ErrNoAdapter is returned when a source id has no registered adapter.
var ErrNoAdapter = errors.New("adapters: no adapter registered for source")

// ErrSourceMismatch is returned when a bundle's source_id disagrees with the
// adapter it was handed to.
var ErrSourceMismatch = errors.New("adapters: bundle source_id does not match adapter source_id")

// FetchedPage is a raw page retrieved by a live (non-fixture) fetch.
type FetchedPage struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// AdapterContext carries per-run identity into an adapter's fetch methods.
type AdapterContext struct {
	RunID     string
	FetchedAt time.Time
}

// ListingTarget is a URL an adapter should crawl for a listing page.
type ListingTarget struct {
	URL string
}

// DetailTarget is a URL an adapter should crawl for a detail page.
type DetailTarget struct {
	URL string
}

// SourceAdapter is the polymorphic capability set every registered source
// implements: identify, classify crawlability, fetch/parse listing, and
// fetch/parse detail. Fetch methods are asynchronous and may be trivial
// (return no pages) for fixture-first sources.
type SourceAdapter interface {
	SourceID() string
	Crawlability() core.Crawlability

	FetchListing(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []ListingTarget) ([]FetchedPage, error)
	ParseListing(bundle FixtureBundle) ([]core.OpportunityDraft, error)

	FetchDetail(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []DetailTarget) ([]FetchedPage, error)
	ParseDetail(bundle FixtureBundle) ([]core.OpportunityDraft, error)
}

func requireSourceMatch(bundle FixtureBundle, sourceID string) error {
	if bundle.SourceID != sourceID {
		return fmt.Errorf("%w: bundle source_id=%s adapter source_id=%s", ErrSourceMismatch, bundle.SourceID, sourceID)
	}
	return nil
}

// noopFetchListing/noopFetchDetail return no pages and issue no request.
// noopFetchListing backs the ManualOnly prolific adapter; noopFetchDetail
// backs FetchDetail on every registered adapter, so no adapter fetches
// detail pages live.
func noopFetchListing(context.Context, *httpfetch.Fetcher, AdapterContext, []ListingTarget) ([]FetchedPage, error) {
	return nil, nil
}

func noopFetchDetail(context.Context, *httpfetch.Fetcher, AdapterContext, []DetailTarget) ([]FetchedPage, error) {
	return nil, nil
}

// crawlListing is the shared live-crawl path for PublicHtml adapters: it
// visits every target with a colly.Collector (via httpfetch.FetchListingPages),
// taking only the Fetcher's user agent (not its semaphores or rate limiter),
// and returns one FetchedPage per page actually retrieved. Called
// with no targets it is a no-op, matching fixture-first sources that declare
// no listing_urls.
func crawlListing(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []ListingTarget) ([]FetchedPage, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	urls := make([]string, len(targets))
	for i, t := range targets {
		urls[i] = t.URL
	}

	var userAgent string
	if f != nil {
		userAgent = f.UserAgent()
	}

	crawled, err := httpfetch.FetchListingPages(ctx, httpfetch.CrawlConfig{UserAgent: userAgent}, urls)
	if err != nil {
		return nil, fmt.Errorf("adapters: crawling listing pages: %w", err)
	}

	pages := make([]FetchedPage, len(crawled))
	for i, c := range crawled {
		pages[i] = FetchedPage{
			URL:         c.URL,
			ContentType: c.ContentType,
			Body:        c.Body,
			FetchedAt:   actx.FetchedAt,
		}
	}
	return pages, nil
}
