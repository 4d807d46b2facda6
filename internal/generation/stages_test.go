package generation

import (
	"testing"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
)

func TestRenderSearchResults(t *testing.T) {
	got := renderSearchResults([]tavily.SearchResult{
		{Title: "First", URL: "https://a.example", Snippet: "alpha", Date: "2026-01-02"},
		{Title: "Second", URL: "https://b.example", Snippet: "beta"},
	})
	want := "1. First\n   https://a.example\n   alpha\n   (2026-01-02)\n\n" +
		"2. Second\n   https://b.example\n   beta"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderSearchResultsEmpty(t *testing.T) {
	if got := renderSearchResults(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
