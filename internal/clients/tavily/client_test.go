package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestSearchParsesResults(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"title":          "Go 1.25 released",
					"url":            "https://go.dev/blog/go1.25",
					"content":        "Release highlights",
					"published_date": "2026-02-10",
					"score":          0.91,
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBase(testLogger(t), srv.URL, "tvly-test")
	results, err := c.Search(context.Background(), "go release", SearchOptions{MaxResults: 3, Depth: "advanced"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	r := results[0]
	if r.Title != "Go 1.25 released" || r.URL != "https://go.dev/blog/go1.25" || r.Snippet != "Release highlights" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Date != "2026-02-10" {
		t.Fatalf("date = %q", r.Date)
	}

	if gotReq["api_key"] != "tvly-test" {
		t.Fatalf("api_key = %v", gotReq["api_key"])
	}
	if gotReq["search_depth"] != "advanced" {
		t.Fatalf("search_depth = %v", gotReq["search_depth"])
	}
	if gotReq["max_results"] != float64(3) {
		t.Fatalf("max_results = %v", gotReq["max_results"])
	}
}

func TestSearchDefaultsAndCaps(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	c := NewClientWithBase(testLogger(t), srv.URL, "k")
	if _, err := c.Search(context.Background(), "q", SearchOptions{MaxResults: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq["max_results"] != float64(10) {
		t.Fatalf("max_results should cap at 10, got %v", gotReq["max_results"])
	}
	if gotReq["search_depth"] != "basic" {
		t.Fatalf("depth should default to basic, got %v", gotReq["search_depth"])
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	c := NewClientWithBase(testLogger(t), "http://unused.invalid", "k")
	if _, err := c.Search(context.Background(), "   ", SearchOptions{}); err == nil {
		t.Fatalf("expected an error for an empty query")
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientWithBase(testLogger(t), srv.URL, "k")
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.HTTPStatusCode() != http.StatusUnauthorized {
		t.Fatalf("status = %d", httpErr.HTTPStatusCode())
	}
}

func TestSearchMalformedBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClientWithBase(testLogger(t), srv.URL, "k")
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}
