package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBackoffIsExponentialAndCapped(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
		350 * time.Millisecond,
	}
	for attempt, expected := range want {
		got := policy.DelayForAttempt(attempt)
		if got != expected {
			t.Fatalf("DelayForAttempt(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]bool{
		500: true,
		502: true,
		429: true,
		404: false,
		400: false,
		200: false,
	}
	for status, want := range cases {
		if got := ClassifyStatus(status); got != want {
			t.Fatalf("ClassifyStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestFetchBytesRetriesServerErrorThenSucceeds(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(Config{
		Timeout:              2 * time.Second,
		GlobalConcurrency:    2,
		PerSourceConcurrency: 2,
		Backoff:              BackoffPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	resp, err := f.FetchBytes(context.Background(), "test-source", server.URL)
	if err != nil {
		t.Fatalf("FetchBytes: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("body = %q, want ok", resp.Body)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestFetchBytesGivesUpOnNonRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(Config{
		Timeout:              2 * time.Second,
		GlobalConcurrency:    1,
		PerSourceConcurrency: 1,
		Backoff:              BackoffPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	_, err := f.FetchBytes(context.Background(), "test-source", server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var statusErr *HTTPStatusError
	if !isHTTPStatusError(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", statusErr.Status)
	}
}

func isHTTPStatusError(err error, target **HTTPStatusError) bool {
	if se, ok := err.(*HTTPStatusError); ok {
		*target = se
		return true
	}
	return false
}
