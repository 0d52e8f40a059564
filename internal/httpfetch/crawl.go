package httpfetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// CrawlConfig configures the live-crawl path used for PublicHtml sources
// that declare listing_urls rather than relying on checked-in fixtures.
type CrawlConfig struct {
	UserAgent   string
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
}

// CrawledPage is one page visited by the live colly-backed crawl path.
type CrawledPage struct {
	URL         string
	ContentType string
	Body        []byte
}

// FetchListingPages visits each listing URL, one after another, with a
// synchronous colly.Collector whose LimitRule applies cfg.Parallelism
// (default 4) and cfg.Delay; it does not use FetchBytes' global or
// per-source semaphores or its token bucket. It returns the raw HTML
// body of each page alongside the URL actually fetched (post-redirect) and
// its response content type. A cancelled ctx aborts before the next
// pending Visit call.
func FetchListingPages(ctx context.Context, cfg CrawlConfig, urls []string) ([]CrawledPage, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	collector := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	collector.SetRequestTimeout(cfg.Timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("httpfetch: configuring crawl limit: %w", err)
	}

	var pages []CrawledPage
	collector.OnResponse(func(r *colly.Response) {
		body := append([]byte(nil), r.Body...)
		pages = append(pages, CrawledPage{
			URL:         r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        body,
		})
	})

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if err := collector.Visit(u); err != nil {
			return pages, fmt.Errorf("httpfetch: visiting %s: %w", u, err)
		}
	}
	collector.Wait()
	return pages, nil
}
