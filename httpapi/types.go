// Package httpapi exposes the agent over HTTP: read-only run/replay
// endpoints, a live event WebSocket stream, bespoke and Prometheus
// metrics, and an admin surface for mode transitions, the kill switch,
// and session-key lifecycle operations.
package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/config"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/observability"
	"github.com/launchsentinel/core/orchestrator"
	"github.com/launchsentinel/core/runledger"
	"github.com/launchsentinel/core/sessionkey"
)

// Deps bundles every collaborator the HTTP surface needs.
type Deps struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Guard        *envguard.Guard
	Sessions     *sessionkey.Manager
	RunLedger    *runledger.Ledger
	Bus          *eventbus.Bus
	Metrics      *observability.Metrics
	PromRegistry *prometheus.Registry
	Logger       zerolog.Logger
}

// Server wraps the chi router and its dependencies.
type Server struct {
	deps    Deps
	handler http.Handler
	logger  zerolog.Logger
}

// promCollectors are the Prometheus-native collectors exposed at
// /metrics/prom, kept separate from the hand-rolled Metrics registry
// that backs the bespoke /metrics JSON. Nothing updates them: observeRun
// has no caller and activeSessions is never set, so /metrics/prom
// reports no run series and a zero active-session gauge.
type promCollectors struct {
	activeSessions prometheus.Gauge
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
}

func newPromCollectors(reg *prometheus.Registry) *promCollectors {
	c := &promCollectors{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launchsentinel_active_sessions",
			Help: "Number of live, non-revoked session keys.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchsentinel_runs_total",
			Help: "Total orchestrator runs by terminal stage and status.",
		}, []string{"stage", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launchsentinel_run_duration_seconds",
			Help:    "Orchestrator run wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(c.activeSessions, c.runsTotal, c.runDuration)
	return c
}

func (c *promCollectors) observeRun(stage, status string, dur time.Duration) {
	c.runsTotal.WithLabelValues(stage, status).Inc()
	c.runDuration.WithLabelValues(stage).Observe(dur.Seconds())
}
