package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics is a small in-process registry exposed in Prometheus text format.
// Stage and backend-call instrumentation goes through Current(); the instance
// is nil-safe so callers never need to guard.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	generations      *CounterVec
	generationStages *CounterVec
}

var (
	instanceMu sync.RWMutex
	instance   *Metrics
)

func Init() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("api_requests_total", "API requests by route and status.", []string{"route", "status"}),
		apiLatency: NewHistogramVec("api_request_seconds", "API request latency.", []string{"route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}),
		llmRequests: NewCounterVec("llm_requests_total", "Backend model calls by model, path and status.", []string{"model", "path", "status"}),
		llmLatency: NewHistogramVec("llm_request_seconds", "Backend model call latency.", []string{"model", "path"},
			[]float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}),
		llmTokens:        NewCounterVec("llm_tokens_total", "Token counts by model and direction.", []string{"model", "direction"}),
		generations:      NewCounterVec("generations_total", "Generation runs by terminal state.", []string{"state"}),
		generationStages: NewCounterVec("generation_stage_results_total", "Stage results by stage and result.", []string{"stage", "result"}),
	}
	instanceMu.Lock()
	instance = m
	instanceMu.Unlock()
	return m
}

func Current() *Metrics {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance
}

func (m *Metrics) ObserveAPIRequest(route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(nonEmpty(route), nonEmpty(status))
	if dur > 0 {
		m.apiLatency.Observe(dur.Seconds(), nonEmpty(route))
	}
}

func (m *Metrics) ObserveLLMRequest(model, path, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = nonEmpty(model)
	path = nonEmpty(path)
	m.llmRequests.Inc(model, path, nonEmpty(status))
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, path)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveGeneration(state string) {
	if m == nil {
		return
	}
	m.generations.Inc(nonEmpty(state))
}

func (m *Metrics) ObserveStageResult(stage, result string) {
	if m == nil {
		return
	}
	m.generationStages.Inc(nonEmpty(stage), nonEmpty(result))
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.generations, m.generationStages,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func nonEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

// -------------------- primitives --------------------

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	c.Add(1, values...)
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	lbl := labelString(c.labelNames, values)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[lbl]
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range sortedKeys(c.values) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	hist := h.values[lbl]
	if hist == nil {
		hist = &histogram{buckets: h.buckets, counts: make([]uint64, len(h.buckets))}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	h.mu.Unlock()
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for lbl, hist := range h.values {
		inner := strings.TrimSuffix(strings.TrimPrefix(lbl, "{"), "}")
		for i, b := range hist.buckets {
			sep := ","
			if inner == "" {
				sep = ""
			}
			if _, err := fmt.Fprintf(w, "%s_bucket{%s%sle=\"%g\"} %d\n", h.name, inner, sep, b, hist.counts[i]); err != nil {
				return err
			}
		}
		sep := ","
		if inner == "" {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "%s_bucket{%s%sle=\"+Inf\"} %d\n", h.name, inner, sep, hist.total); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n%s_count%s %d\n", h.name, lbl, hist.sum, h.name, lbl, hist.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", n, v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
