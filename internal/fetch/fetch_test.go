package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corvida/mangrove/internal/config"
	"github.com/corvida/mangrove/internal/fetch"
)

func testConfig() config.IngestConfig {
	return config.IngestConfig{
		FetchTimeout:     2 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
		MaxResponseBytes: 1024,
		RateLimitRPS:     1000,
		UserAgent:        "mangrove-test",
	}
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "mangrove-test" {
			t.Errorf("User-Agent not set, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := fetch.NewClient(testConfig())
	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("Unexpected body: %q", body)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := fetch.NewClient(testConfig())
	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("Unexpected body: %q", body)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := fetch.NewClient(testConfig())
	_, err := client.Fetch(context.Background(), server.URL)

	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != fetch.KindHTTP || ferr.Status != http.StatusNotFound {
		t.Errorf("Unexpected classification: kind=%v status=%d", ferr.Kind, ferr.Status)
	}
	if !ferr.Permanent() {
		t.Error("A 404 should be classified as permanent")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("A 4xx must not be retried; got %d attempts", calls)
	}
}

func TestFetchRetriesExhaust(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := fetch.NewClient(testConfig())
	_, err := client.Fetch(context.Background(), server.URL)

	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected *fetch.Error, got %v", err)
	}
	if ferr.Status != http.StatusInternalServerError {
		t.Errorf("Unexpected status: %d", ferr.Status)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected the full attempt ceiling of 3, got %d", calls)
	}
}

func TestFetchResponseSizeCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	client := fetch.NewClient(testConfig())
	_, err := client.Fetch(context.Background(), server.URL)

	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != fetch.KindTooLarge {
		t.Errorf("Expected KindTooLarge, got %v", ferr.Kind)
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	client := fetch.NewClient(testConfig())
	if _, err := client.Fetch(context.Background(), "ftp://example.com/x"); err == nil {
		t.Fatal("Expected error for non-http URL")
	}
}
