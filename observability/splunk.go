package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/submission"
)

// SplunkConfig holds Splunk HEC connection settings.
type SplunkConfig struct {
	// HECURL is the Splunk HEC endpoint URL (e.g., "https://splunk.example.com:8088/services/collector/event")
	HECURL string
	// Token is the Splunk HEC authentication token.
	Token string
	// Index is the target Splunk index (optional, uses default if empty).
	Index string
	// Source identifies the log source.
	Source string
	// SourceType for structured JSON logs.
	SourceType string
	// FlushInterval controls periodic batch flush (default: 5s).
	FlushInterval time.Duration
	// BatchSize is the max events per batch before flush (default: 100).
	BatchSize int
	// Enabled controls whether logs are sent.
	Enabled bool
}

// DefaultSplunkConfig returns sane defaults.
func DefaultSplunkConfig() SplunkConfig {
	return SplunkConfig{
		HECURL:        "",
		Token:         "",
		Index:         "launchsentinel",
		Source:        "launchsentinel",
		SourceType:    "_json",
		FlushInterval: 5 * time.Second,
		BatchSize:     100,
		Enabled:       false,
	}
}

// SplunkForwarder sends structured log events to Splunk HEC. It
// implements submission.AuditSink directly, so it can be handed to
// submission.NewAuditPipeline as the durable store for the submission
// audit trail, in addition to forwarding arbitrary security events.
type SplunkForwarder struct {
	cfg    SplunkConfig
	client *http.Client
	logger zerolog.Logger

	mu     sync.Mutex
	buffer []splunkEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// splunkEvent is a single Splunk HEC event payload.
type splunkEvent struct {
	Time       float64                `json:"time"`
	Host       string                 `json:"host,omitempty"`
	Source     string                 `json:"source,omitempty"`
	SourceType string                 `json:"sourcetype,omitempty"`
	Index      string                 `json:"index,omitempty"`
	Event      map[string]interface{} `json:"event"`
}

// NewSplunkForwarder creates and starts a Splunk forwarder.
func NewSplunkForwarder(cfg SplunkConfig, logger zerolog.Logger) *SplunkForwarder {
	sf := &SplunkForwarder{
		cfg:    cfg,
		logger: logger.With().Str("component", "splunk").Logger(),
		buffer: make([]splunkEvent, 0, cfg.BatchSize),
		stopCh: make(chan struct{}),
		client: &http.Client{Timeout: 15 * time.Second},
	}

	if !cfg.Enabled {
		sf.logger.Info().Msg("Splunk forwarder disabled — events will not be shipped")
		return sf
	}

	sf.wg.Add(1)
	go sf.flushLoop()

	sf.logger.Info().
		Str("hec_url", cfg.HECURL).
		Str("index", cfg.Index).
		Int("batch_size", cfg.BatchSize).
		Msg("Splunk forwarder started")

	return sf
}

// Stop gracefully shuts down the forwarder.
func (sf *SplunkForwarder) Stop() {
	if !sf.cfg.Enabled {
		return
	}
	close(sf.stopCh)
	sf.wg.Wait()
	sf.flush()
	sf.logger.Info().Msg("Splunk forwarder stopped")
}

// ─── submission.AuditSink ───────────────────────────────────

// WriteAuditEntries implements submission.AuditSink. Every entry the
// submission router flushes is forwarded as a Splunk audit event in
// addition to whatever other durable store the caller wires.
func (sf *SplunkForwarder) WriteAuditEntries(ctx context.Context, entries []submission.SubmissionAuditEntry) error {
	for _, e := range entries {
		sf.Log(map[string]interface{}{
			"event_type":     "submission_audit",
			"entry_id":       e.EntryID,
			"correlation_id": e.CorrelationID,
			"plan_id":        e.PlanID,
			"simulation_id":  e.SimulationID,
			"bundle_id":      e.BundleID,
			"tx_hash":        e.TxHash,
			"action":         string(e.Action),
			"chosen_route":   string(e.ChosenRoute),
		})
	}
	return nil
}

// ─── Public API ─────────────────────────────────────────────

// Log sends a structured log event to Splunk.
func (sf *SplunkForwarder) Log(event map[string]interface{}) {
	if !sf.cfg.Enabled {
		return
	}

	se := splunkEvent{
		Time:       float64(time.Now().UnixMilli()) / 1000.0,
		Source:     sf.cfg.Source,
		SourceType: sf.cfg.SourceType,
		Index:      sf.cfg.Index,
		Event:      event,
	}

	sf.mu.Lock()
	sf.buffer = append(sf.buffer, se)
	shouldFlush := len(sf.buffer) >= sf.cfg.BatchSize
	sf.mu.Unlock()

	if shouldFlush {
		sf.flush()
	}
}

// LogSecurityEvent logs a scanner/envguard security event.
func (sf *SplunkForwarder) LogSecurityEvent(eventType, category, severity string, details map[string]interface{}) {
	event := map[string]interface{}{
		"event_type": "security",
		"sub_type":   eventType,
		"category":   category,
		"severity":   severity,
	}
	for k, v := range details {
		event[k] = v
	}
	sf.Log(event)
}

// LogSessionKeyEvent logs a session-key lifecycle event (create,
// rotate, revoke, kill-switch revoke-all).
func (sf *SplunkForwarder) LogSessionKeyEvent(action, sessionID string, details map[string]interface{}) {
	event := map[string]interface{}{
		"event_type": "session_key",
		"action":     action,
		"session_id": sessionID,
	}
	for k, v := range details {
		event[k] = v
	}
	sf.Log(event)
}

// ─── Internal ───────────────────────────────────────────────

func (sf *SplunkForwarder) flushLoop() {
	defer sf.wg.Done()
	ticker := time.NewTicker(sf.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sf.flush()
		case <-sf.stopCh:
			return
		}
	}
}

func (sf *SplunkForwarder) flush() {
	sf.mu.Lock()
	if len(sf.buffer) == 0 {
		sf.mu.Unlock()
		return
	}
	events := sf.buffer
	sf.buffer = make([]splunkEvent, 0, sf.cfg.BatchSize)
	sf.mu.Unlock()

	// Splunk HEC accepts newline-delimited JSON events
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := encoder.Encode(ev); err != nil {
			sf.logger.Warn().Err(err).Msg("failed to encode Splunk event")
		}
	}

	req, err := http.NewRequest("POST", sf.cfg.HECURL, &buf)
	if err != nil {
		sf.logger.Error().Err(err).Msg("failed to create Splunk HEC request")
		return
	}
	req.Header.Set("Authorization", fmt.Sprintf("Splunk %s", sf.cfg.Token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sf.client.Do(req)
	if err != nil {
		sf.logger.Error().Err(err).Int("events", len(events)).Msg("failed to send events to Splunk HEC")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		sf.logger.Error().Int("status", resp.StatusCode).Int("events", len(events)).Msg("Splunk HEC returned error")
		return
	}

	sf.logger.Debug().Int("events", len(events)).Msg("flushed events to Splunk HEC")
}
