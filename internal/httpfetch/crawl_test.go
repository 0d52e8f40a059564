package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchListingPagesVisitsEachURL(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>" + r.URL.Path + "</body></html>"))
	}))
	defer server.Close()

	urls := []string{server.URL + "/listing-a", server.URL + "/listing-b"}

	pages, err := FetchListingPages(context.Background(), CrawlConfig{
		UserAgent:   "rhof-sync-test/1.0",
		Parallelism: 2,
		Timeout:     2 * time.Second,
	}, urls)
	if err != nil {
		t.Fatalf("FetchListingPages: %v", err)
	}
	if len(pages) != len(urls) {
		t.Fatalf("got %d pages, want %d", len(pages), len(urls))
	}
	if len(requests) != len(urls) {
		t.Fatalf("server saw %d requests, want %d", len(requests), len(urls))
	}
	for _, p := range pages {
		if p.ContentType != "text/html" {
			t.Errorf("page %s content type = %q, want text/html", p.URL, p.ContentType)
		}
		if len(p.Body) == 0 {
			t.Errorf("page %s has empty body", p.URL)
		}
	}
}

func TestFetchListingPagesEmptyURLsIsNoop(t *testing.T) {
	pages, err := FetchListingPages(context.Background(), CrawlConfig{}, nil)
	if err != nil {
		t.Fatalf("FetchListingPages: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("got %d pages, want 0", len(pages))
	}
}

func TestFetchListingPagesHonorsCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := FetchListingPages(ctx, CrawlConfig{}, []string{server.URL})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(pages) != 0 {
		t.Fatalf("got %d pages, want 0", len(pages))
	}
}
