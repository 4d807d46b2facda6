package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/halcyonlabs/agentstudio-backend/internal/observability"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/httpx"
	"github.com/halcyonlabs/agentstudio-backend/internal/platform/logger"
)

// CompletionRequest is one main/summarizer call. Body holds structured
// request-body parameters collected by the form layer (temperature,
// max_output_tokens, ...); Extra holds provider passthrough fields. Both are
// merged into the wire request as-is.
type CompletionRequest struct {
	System string
	Prompt string
	Model  string
	Format string // "text" | "json"
	Schema map[string]any
	Body   map[string]any
	Extra  map[string]any
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Completion struct {
	Response string
	Format   string
	Usage    Usage
	Warnings []string
	Duration time.Duration
}

type ImageArtifact struct {
	// Ref is the artifact reference handed to callers: a data URI when the
	// backend returned bytes, else the hosted URL.
	Ref           string
	MimeType      string
	RevisedPrompt string
}

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	GenerateImage(ctx context.Context, prompt, imageType, outputFormat string) (*ImageArtifact, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	imageSize  string
	httpClient *http.Client
	maxRetries int

	temperature        *float64
	disableTemperature bool
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4.1"
	}

	imageModel := strings.TrimSpace(os.Getenv("OPENAI_IMAGE_MODEL"))
	if imageModel == "" {
		imageModel = "gpt-image-1"
	}
	imageSize := strings.TrimSpace(os.Getenv("OPENAI_IMAGE_SIZE"))
	if imageSize == "" {
		imageSize = "1024x1024"
	}

	timeoutSec := 180
	if v := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	disableTemperature := false
	var tempPtr *float64
	if v := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); v != "" {
		low := strings.ToLower(v)
		if low == "off" || low == "none" || low == "false" {
			disableTemperature = true
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			tempPtr = &f
		}
	}

	return &client{
		log:                log.With("service", "OpenAIClient"),
		baseURL:            baseURL,
		apiKey:             apiKey,
		model:              model,
		imageModel:         imageModel,
		imageSize:          imageSize,
		httpClient:         &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:         maxRetries,
		temperature:        tempPtr,
		disableTemperature: disableTemperature,
	}, nil
}

// NewClientWithBase is used by tests to point the client at an httptest server.
func NewClientWithBase(log *logger.Logger, baseURL, apiKey string) Client {
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      "test-model",
		imageModel: "test-image-model",
		imageSize:  "1024x1024",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
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
	return fmt.Sprintf("openai decode error: %v; raw=%s", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RefusalError is an application-level failure reported inside a successful envelope.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return "model refused: " + e.Message
}

// -------------------- transport --------------------

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	start := time.Now()
	model := extractModel(body)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			inTok, outTok := extractUsageFromRaw(raw)
			observability.Current().ObserveLLMRequest(model, path, statusFromResp(resp), time.Since(start), inTok, outTok)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &DecodeError{Err: uErr, Raw: string(raw)}
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			observability.Current().ObserveLLMRequest(model, path, statusFromRespErr(resp, err), time.Since(start), 0, 0)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Responses API --------------------

type responsesRequest struct {
	Model string `json:"model"`

	Input []responsesInput `json:"input"`

	Text *struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`

	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`

	extra map[string]any
}

type responsesInput struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// MarshalJSON flattens Extra passthrough fields into the top-level object.
func (r responsesRequest) MarshalJSON() ([]byte, error) {
	type plain responsesRequest
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range r.extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	wire := responsesRequest{
		Model: model,
		Input: []responsesInput{
			{Role: "system", Content: strings.TrimSpace(req.System)},
			{Role: "user", Content: req.Prompt},
		},
		extra: req.Extra,
	}
	if !c.disableTemperature && c.temperature != nil {
		wire.Temperature = c.temperature
	}
	applyBodyParams(&wire, req.Body)

	if strings.EqualFold(req.Format, "json") {
		format := map[string]any{"type": "json_object"}
		if req.Schema != nil {
			format = map[string]any{
				"type":   "json_schema",
				"name":   "response",
				"schema": req.Schema,
				"strict": true,
			}
		}
		wire.Text = &struct {
			Format map[string]any `json:"format,omitempty"`
		}{Format: format}
	}

	start := time.Now()
	var resp responsesResponse
	if err := c.do(ctx, "POST", "/v1/responses", wire, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, &RefusalError{Message: resp.Refusal}
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &DecodeError{Err: errors.New("no output_text found in response")}
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "text"
	}
	return &Completion{
		Response: text,
		Format:   format,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Warnings: resp.Warnings,
		Duration: time.Since(start),
	}, nil
}

func applyBodyParams(wire *responsesRequest, body map[string]any) {
	for k, v := range body {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "temperature":
			if f, ok := toFloat(v); ok {
				wire.Temperature = &f
			}
		case "max_output_tokens", "max_tokens":
			if f, ok := toFloat(v); ok && f > 0 {
				wire.MaxOutputTokens = int(f)
			}
		default:
			if wire.extra == nil {
				wire.extra = map[string]any{}
			}
			if _, exists := wire.extra[k]; !exists {
				wire.extra[k] = v
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// -------------------- Images API --------------------

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt, imageType, outputFormat string) (*ImageArtifact, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("image prompt required")
	}
	if it := strings.TrimSpace(imageType); it != "" && !strings.EqualFold(it, "none") {
		prompt = prompt + "\n\nImage style: " + it
	}

	responseFormat := strings.TrimSpace(outputFormat)
	if responseFormat == "" && !strings.HasPrefix(strings.ToLower(c.imageModel), "gpt-image-") {
		responseFormat = "b64_json"
	}
	req := imagesGenerationRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: responseFormat,
	}

	var resp imagesGenerationResponse
	if err := c.do(ctx, "POST", "/v1/images/generations", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &DecodeError{Err: errors.New("no image returned")}
	}

	item := resp.Data[0]
	out := &ImageArtifact{RevisedPrompt: strings.TrimSpace(item.RevisedPrompt)}
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("decode image base64: %w", err)}
		}
		out.MimeType = "image/png"
		out.Ref = "data:image/png;base64," + b64
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		out.Ref = u
		return out, nil
	}
	return nil, &DecodeError{Err: errors.New("image response missing b64_json and url")}
}

// -------------------- helpers --------------------

func extractUsageFromRaw(raw []byte) (int, int) {
	if len(raw) == 0 {
		return 0, 0
	}
	var payload struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, 0
	}
	return payload.Usage.InputTokens, payload.Usage.OutputTokens
}

func extractModel(body any) string {
	switch v := body.(type) {
	case responsesRequest:
		return strings.TrimSpace(v.Model)
	case *responsesRequest:
		if v != nil {
			return strings.TrimSpace(v.Model)
		}
	case imagesGenerationRequest:
		return strings.TrimSpace(v.Model)
	case *imagesGenerationRequest:
		if v != nil {
			return strings.TrimSpace(v.Model)
		}
	}
	return ""
}

func statusFromResp(resp *http.Response) string {
	if resp == nil {
		return "unknown"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	var httpErr *HTTPError
	if err != nil && errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
