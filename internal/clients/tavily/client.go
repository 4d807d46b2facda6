package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

// SearchResult is one ranked web result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

type SearchOptions struct {
	MaxResults int
	Depth      string // "basic" | "advanced"
	Topic      string // tool selector passthrough ("general", "news", ...)
}

type Client interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("TAVILY_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing TAVILY_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("TAVILY_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &client{
		log:        log.With("service", "TavilyClient"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

// NewClientWithBase is used by tests to point the client at an httptest server.
func NewClientWithBase(log *logger.Logger, baseURL, apiKey string) Client {
	return &client{
		log:        log.With("service", "TavilyClient"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tavily http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// DecodeError is a 2xx response whose body did not parse as the expected envelope.
type DecodeError struct {
	Err error
	Raw string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tavily decode error: %v; raw=%s", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
	Topic       string `json:"topic,omitempty"`
}

type searchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
	Error string `json:"error,omitempty"`
}

func (c *client) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query required")
	}

	maxResults := opts.MaxResults
	if maxResults < 1 {
		maxResults = 5
	}
	if maxResults > 10 {
		maxResults = 10
	}
	depth := strings.TrimSpace(opts.Depth)
	if depth == "" {
		depth = "basic"
	}

	body, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: depth,
		Topic:       strings.TrimSpace(opts.Topic),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &DecodeError{Err: err, Raw: string(raw)}
	}
	if strings.TrimSpace(parsed.Error) != "" {
		return nil, fmt.Errorf("tavily error: %s", parsed.Error)
	}

	out := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		title := strings.TrimSpace(r.Title)
		url := strings.TrimSpace(r.URL)
		if title == "" && url == "" {
			continue
		}
		out = append(out, SearchResult{
			Title:   title,
			URL:     url,
			Snippet: strings.TrimSpace(r.Content),
			Date:    strings.TrimSpace(r.PublishedDate),
			Score:   r.Score,
		})
	}

	c.log.Debug("Tavily search completed",
		"query_len", len(query),
		"results", len(out),
		"duration", time.Since(start).String(),
	)
	return out, nil
}
