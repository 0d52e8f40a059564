package adapters

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/davidclay/rhof-sync/internal/core"
	"github.com/davidclay/rhof-sync/internal/httpfetch"
)

// appenCrowdgenAdapter's listing pages carry little structured markup, so
// its override pass is intentionally narrow: title from h1, apply_url from
// the first anchor. Everything else stays at the fixture-derived value.
type appenCrowdgenAdapter struct{}

// NewAppenCrowdgenAdapter returns the appen-crowdgen PublicHtml adapter.
func NewAppenCrowdgenAdapter() SourceAdapter {
	return appenCrowdgenAdapter{}
}

func (appenCrowdgenAdapter) SourceID() string               { return "appen-crowdgen" }
func (appenCrowdgenAdapter) Crawlability() core.Crawlability { return core.CrawlabilityPublicHTML }

func (a appenCrowdgenAdapter) FetchListing(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []ListingTarget) ([]FetchedPage, error) {
	return crawlListing(ctx, f, actx, targets)
}

func (a appenCrowdgenAdapter) FetchDetail(ctx context.Context, f *httpfetch.Fetcher, actx AdapterContext, targets []DetailTarget) ([]FetchedPage, error) {
	return noopFetchDetail(ctx, f, actx, targets)
}

func (a appenCrowdgenAdapter) ParseListing(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	if err := requireSourceMatch(bundle, a.SourceID()); err != nil {
		return nil, err
	}
	drafts := bundleToDrafts(bundle)
	if len(drafts) == 0 {
		return drafts, nil
	}
	if bundle.RawArtifact.InlineText == nil {
		return drafts, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(*bundle.RawArtifact.InlineText))
	if err != nil {
		return drafts, nil
	}

	var overrides htmlOverrides
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if text := strings.TrimSpace(h1.Text()); text != "" {
			overrides.title = &overrideField[string]{value: text, selectorOrPointer: "h1", snippet: sanitizeSnippet(text)}
		}
	}
	if link := doc.Find("a[href]").First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok && href != "" {
			overrides.applyURL = &overrideField[string]{value: href, selectorOrPointer: "a[href]", snippet: href}
		}
	}
	if overrides.title == nil && overrides.applyURL == nil {
		return drafts, nil
	}

	overrides.applyTo(&drafts[0], bundle)
	return drafts, nil
}

func (a appenCrowdgenAdapter) ParseDetail(bundle FixtureBundle) ([]core.OpportunityDraft, error) {
	return a.ParseListing(bundle)
}
