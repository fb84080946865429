// Package observability ships DogStatsD metrics, a hand-rolled metrics
// registry, W3C trace propagation, and push-based alerting/log
// forwarding for the agent.
package observability

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ─── Metric Types ───────────────────────────────────────────

// Counter is a monotonically increasing value.
type Counter struct {
	value int64
}

func (c *Counter) Inc()            { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(n int64)     { atomic.AddInt64(&c.value, n) }
func (c *Counter) Value() int64    { return atomic.LoadInt64(&c.value) }

// Gauge is a value that can go up and down.
type Gauge struct {
	value int64 // stored as micros for float-like precision
}

func (g *Gauge) Set(v float64)   { atomic.StoreInt64(&g.value, int64(v*1e6)) }
func (g *Gauge) Inc()            { atomic.AddInt64(&g.value, 1e6) }
func (g *Gauge) Dec()            { atomic.AddInt64(&g.value, -1e6) }
func (g *Gauge) Value() float64  { return float64(atomic.LoadInt64(&g.value)) / 1e6 }

// Histogram tracks value distributions with configurable buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []int64  // per-bucket counts (+ Inf)
	sum     float64
	count   int64
}

func NewHistogram(buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &Histogram{
		buckets: sorted,
		counts:  make([]int64, len(sorted)+1), // +1 for +Inf
	}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	// Store differential counts — only increment the first matching bucket.
	// The Handler accumulates these into cumulative Prometheus buckets.
	placed := false
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[len(h.buckets)]++ // +Inf bucket
	}
}

// ─── Label Key ──────────────────────────────────────────────

// labelKey creates a sorted label string for metric identification.
func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return strings.Join(parts, ",")
}

// ─── Metrics Registry ───────────────────────────────────────

// Metrics is the central Prometheus-compatible metrics registry.
type Metrics struct {
	mu         sync.RWMutex
	logger     zerolog.Logger
	counters   map[string]map[string]*Counter   // name → labelKey → counter
	gauges     map[string]map[string]*Gauge
	histograms map[string]map[string]*Histogram

	// Pre-defined metric names for documentation
	// (actual registration is implicit on first use)

	// Default histogram buckets for latency (ms)
	latencyBuckets []float64
	// Default histogram buckets for token counts
	tokenBuckets   []float64
}

// NewMetrics creates a new metrics registry.
func NewMetrics(logger zerolog.Logger) *Metrics {
	return &Metrics{
		logger:     logger.With().Str("component", "metrics").Logger(),
		counters:   make(map[string]map[string]*Counter),
		gauges:     make(map[string]map[string]*Gauge),
		histograms: make(map[string]map[string]*Histogram),
		latencyBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		tokenBuckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	}
}

// ─── Counter Operations ─────────────────────────────────────

func (m *Metrics) CounterInc(name string, labels map[string]string) {
	m.getCounter(name, labels).Inc()
}

func (m *Metrics) CounterAdd(name string, labels map[string]string, n int64) {
	m.getCounter(name, labels).Add(n)
}

func (m *Metrics) getCounter(name string, labels map[string]string) *Counter {
	key := labelKey(labels)
	m.mu.RLock()
	if byName, ok := m.counters[name]; ok {
		if c, ok := byName[key]; ok {
			m.mu.RUnlock()
			return c
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; !ok {
		m.counters[name] = make(map[string]*Counter)
	}
	if _, ok := m.counters[name][key]; !ok {
		m.counters[name][key] = &Counter{}
	}
	return m.counters[name][key]
}

// ─── Gauge Operations ───────────────────────────────────────

func (m *Metrics) GaugeSet(name string, labels map[string]string, v float64) {
	m.getGauge(name, labels).Set(v)
}

func (m *Metrics) GaugeInc(name string, labels map[string]string) {
	m.getGauge(name, labels).Inc()
}

func (m *Metrics) GaugeDec(name string, labels map[string]string) {
	m.getGauge(name, labels).Dec()
}

func (m *Metrics) getGauge(name string, labels map[string]string) *Gauge {
	key := labelKey(labels)
	m.mu.RLock()
	if byName, ok := m.gauges[name]; ok {
		if g, ok := byName[key]; ok {
			m.mu.RUnlock()
			return g
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gauges[name]; !ok {
		m.gauges[name] = make(map[string]*Gauge)
	}
	if _, ok := m.gauges[name][key]; !ok {
		m.gauges[name][key] = &Gauge{}
	}
	return m.gauges[name][key]
}

// ─── Histogram Operations ───────────────────────────────────

func (m *Metrics) HistogramObserve(name string, labels map[string]string, v float64) {
	m.getHistogram(name, labels).Observe(v)
}

func (m *Metrics) getHistogram(name string, labels map[string]string) *Histogram {
	key := labelKey(labels)
	m.mu.RLock()
	if byName, ok := m.histograms[name]; ok {
		if h, ok := byName[key]; ok {
			m.mu.RUnlock()
			return h
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.histograms[name]; !ok {
		m.histograms[name] = make(map[string]*Histogram)
	}
	if _, ok := m.histograms[name][key]; !ok {
		m.histograms[name][key] = NewHistogram(m.latencyBuckets)
	}
	return m.histograms[name][key]
}

// ─── Pre-defined Metric Helpers ─────────────────────────────

// TrackHTTPRequest records a completed httpapi request with all
// relevant labels.
func (m *Metrics) TrackHTTPRequest(route, method string, statusCode int, latencyMs float64) {
	labels := map[string]string{
		"route":  route,
		"method": method,
		"status": fmt.Sprintf("%d", statusCode),
	}
	m.CounterInc("launchsentinel_http_requests_total", labels)
	m.HistogramObserve("launchsentinel_http_request_duration_ms", labels, latencyMs)
}

// TrackRunOutcome records a completed orchestrator run.
func (m *Metrics) TrackRunOutcome(stage, status string, durationMs float64) {
	labels := map[string]string{"stage": stage, "status": status}
	m.CounterInc("launchsentinel_runs_total", labels)
	m.HistogramObserve("launchsentinel_run_duration_ms", labels, durationMs)
}

// TrackSubmission records a submission router outcome by route class.
func (m *Metrics) TrackSubmission(route string, success bool) {
	m.CounterInc("launchsentinel_submissions_total", map[string]string{
		"route": route, "success": fmt.Sprintf("%t", success),
	})
}

// TrackSecurityAlert records a denied write/admin operation.
func (m *Metrics) TrackSecurityAlert(kind, mode string) {
	m.CounterInc("launchsentinel_security_alerts_total", map[string]string{
		"kind": kind, "mode": mode,
	})
}

// TrackSessionBudget sets the remaining budget gauge for a live
// session key, in wei.
func (m *Metrics) TrackSessionBudget(sessionID string, remainingWei float64) {
	m.GaugeSet("launchsentinel_session_budget_remaining_wei", map[string]string{"session": sessionID}, remainingWei)
}

// TrackMemoryIndexQueueDepth sets the current depth of the memory
// engine's async indexing queue.
func (m *Metrics) TrackMemoryIndexQueueDepth(depth int) {
	m.GaugeSet("launchsentinel_memory_queue_depth", nil, float64(depth))
}

// ─── Prometheus Exposition Format ───────────────────────────

// Handler returns an http.HandlerFunc that serves /metrics in
// Prometheus text exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		// Timestamp
		sb.WriteString(fmt.Sprintf("# launchsentinel metrics - %s\n\n", time.Now().UTC().Format(time.RFC3339)))

		m.mu.RLock()
		defer m.mu.RUnlock()

		// Counters
		for name, byLabel := range m.counters {
			sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
			for lk, c := range byLabel {
				if lk == "" {
					sb.WriteString(fmt.Sprintf("%s %d\n", name, c.Value()))
				} else {
					sb.WriteString(fmt.Sprintf("%s{%s} %d\n", name, lk, c.Value()))
				}
			}
			sb.WriteString("\n")
		}

		// Gauges
		for name, byLabel := range m.gauges {
			sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
			for lk, g := range byLabel {
				if lk == "" {
					sb.WriteString(fmt.Sprintf("%s %f\n", name, g.Value()))
				} else {
					sb.WriteString(fmt.Sprintf("%s{%s} %f\n", name, lk, g.Value()))
				}
			}
			sb.WriteString("\n")
		}

		// Histograms
		for name, byLabel := range m.histograms {
			sb.WriteString(fmt.Sprintf("# TYPE %s histogram\n", name))
			for lk, h := range byLabel {
				h.mu.Lock()
				prefix := name
				if lk != "" {
					prefix = fmt.Sprintf("%s{%s}", name, lk)
				}
				cumulative := int64(0)
				for i, b := range h.buckets {
					cumulative += h.counts[i]
					if lk != "" {
						sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%g\",%s} %d\n", name, b, lk, cumulative))
					} else {
						sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%g\"} %d\n", name, b, cumulative))
					}
				}
				cumulative += h.counts[len(h.buckets)]
				if lk != "" {
					sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\",%s} %d\n", name, lk, cumulative))
				} else {
					sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", name, cumulative))
				}
				sb.WriteString(fmt.Sprintf("%s_sum %f\n", prefix, h.sum))
				sb.WriteString(fmt.Sprintf("%s_count %d\n", prefix, h.count))
				h.mu.Unlock()
			}
			sb.WriteString("\n")
		}

		_, _ = w.Write([]byte(sb.String()))
	}
}

// jsonMetric is one row of the bespoke /metrics JSON shape: a single
// figure tagged with the subsystem ("source") that produced it.
type jsonMetric struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Source string            `json:"source,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// source guesses the owning subsystem from a metric's name prefix, for
// the bespoke JSON endpoint's "source" tag.
func source(name string) string {
	switch {
	case strings.HasPrefix(name, "launchsentinel_http_"):
		return "httpapi"
	case strings.HasPrefix(name, "launchsentinel_runs_") || strings.HasPrefix(name, "launchsentinel_run_"):
		return "orchestrator"
	case strings.HasPrefix(name, "launchsentinel_submissions_"):
		return "submission"
	case strings.HasPrefix(name, "launchsentinel_security_"):
		return "envguard"
	case strings.HasPrefix(name, "launchsentinel_session_"):
		return "sessionkey"
	case strings.HasPrefix(name, "launchsentinel_memory_"):
		return "memory"
	default:
		return ""
	}
}

// JSONHandler returns an http.HandlerFunc serving the bespoke JSON
// metrics shape: every counter/gauge/histogram figure, each tagged
// with the subsystem it came from. Complements the Prometheus-format
// Handler for dashboards that prefer structured JSON over exposition
// text.
func (m *Metrics) JSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		var rows []jsonMetric
		for name, byLabel := range m.counters {
			for lk, c := range byLabel {
				rows = append(rows, jsonMetric{Name: name, Type: "counter", Source: source(name), Labels: parseLabelKey(lk), Value: float64(c.Value())})
			}
		}
		for name, byLabel := range m.gauges {
			for lk, g := range byLabel {
				rows = append(rows, jsonMetric{Name: name, Type: "gauge", Source: source(name), Labels: parseLabelKey(lk), Value: g.Value()})
			}
		}
		for name, byLabel := range m.histograms {
			for lk, h := range byLabel {
				h.mu.Lock()
				count := h.count
				h.mu.Unlock()
				rows = append(rows, jsonMetric{Name: name + "_count", Type: "histogram", Source: source(name), Labels: parseLabelKey(lk), Value: float64(count)})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"generatedAt": time.Now().UTC(),
			"metrics":     rows,
		})
	}
}

// parseLabelKey reverses labelKey's "k=\"v\",k2=\"v2\"" encoding back
// into a map for JSON output.
func parseLabelKey(lk string) map[string]string {
	if lk == "" {
		return nil
	}
	labels := make(map[string]string)
	for _, part := range strings.Split(lk, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		labels[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return labels
}
