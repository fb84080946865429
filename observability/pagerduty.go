package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/envguard"
)

// PagerDutyConfig holds configuration for PagerDuty Events API v2.
type PagerDutyConfig struct {
	// RoutingKey is the PagerDuty Events API v2 integration key.
	RoutingKey string
	// Enabled controls whether alerts are sent.
	Enabled bool
	// SourceName identifies this agent instance (e.g., "launchsentinel-prod-01").
	SourceName string
	// HTTPTimeout for the PagerDuty API call.
	HTTPTimeout time.Duration
}

// DefaultPagerDutyConfig returns defaults.
func DefaultPagerDutyConfig() PagerDutyConfig {
	return PagerDutyConfig{
		RoutingKey:  "",
		Enabled:     false,
		SourceName:  "launchsentinel",
		HTTPTimeout: 10 * time.Second,
	}
}

// PagerDutySeverity maps to PagerDuty alert severity.
type PagerDutySeverity string

const (
	PDSeverityCritical PagerDutySeverity = "critical"
	PDSeverityError    PagerDutySeverity = "error"
	PDSeverityWarning  PagerDutySeverity = "warning"
	PDSeverityInfo     PagerDutySeverity = "info"
)

// PagerDutyClient sends incidents to PagerDuty Events API v2. It
// implements envguard.AlertSink so it can be handed directly to
// Guard.SetAlertSink, or wrapped in a FanoutAlertSink alongside
// eventbus.Bus.
type PagerDutyClient struct {
	cfg    PagerDutyConfig
	client *http.Client
	logger zerolog.Logger
}

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// NewPagerDutyClient creates a PagerDuty alerting client.
func NewPagerDutyClient(cfg PagerDutyConfig, logger zerolog.Logger) *PagerDutyClient {
	return &PagerDutyClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.With().Str("component", "pagerduty").Logger(),
	}
}

// TriggerAlert fires a PagerDuty alert.
func (pd *PagerDutyClient) TriggerAlert(
	severity PagerDutySeverity,
	summary string,
	dedupKey string,
	details map[string]interface{},
) error {
	if !pd.cfg.Enabled || pd.cfg.RoutingKey == "" {
		pd.logger.Debug().Str("summary", summary).Msg("PagerDuty disabled — alert suppressed")
		return nil
	}

	payload := map[string]interface{}{
		"routing_key":  pd.cfg.RoutingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey,
		"payload": map[string]interface{}{
			"summary":         summary,
			"severity":        string(severity),
			"source":          pd.cfg.SourceName,
			"component":       "launchsentinel",
			"group":           "onchain-agent",
			"class":           "security",
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
			"custom_details":  details,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pagerduty: marshal failed: %w", err)
	}

	resp, err := pd.client.Post(pagerDutyEventsURL, "application/json", bytes.NewReader(body))
	if err != nil {
		pd.logger.Error().Err(err).Str("dedup_key", dedupKey).Msg("PagerDuty API call failed")
		return fmt.Errorf("pagerduty: API call failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		pd.logger.Error().Int("status", resp.StatusCode).Str("dedup_key", dedupKey).Msg("PagerDuty API error")
		return fmt.Errorf("pagerduty: HTTP %d", resp.StatusCode)
	}

	pd.logger.Info().Str("dedup_key", dedupKey).Str("severity", string(severity)).Msg("PagerDuty alert triggered")
	return nil
}

// ResolveAlert resolves a previously triggered alert.
func (pd *PagerDutyClient) ResolveAlert(dedupKey string) error {
	if !pd.cfg.Enabled || pd.cfg.RoutingKey == "" {
		return nil
	}

	payload := map[string]interface{}{
		"routing_key":  pd.cfg.RoutingKey,
		"event_action": "resolve",
		"dedup_key":    dedupKey,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pagerduty: marshal failed: %w", err)
	}

	resp, err := pd.client.Post(pagerDutyEventsURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pagerduty: resolve call failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	pd.logger.Info().Str("dedup_key", dedupKey).Msg("PagerDuty alert resolved")
	return nil
}

// PublishSecurityAlert implements envguard.AlertSink. Only denied admin
// and write operations page — reads never do.
func (pd *PagerDutyClient) PublishSecurityAlert(alert envguard.SecurityAlert) {
	severity := PDSeverityWarning
	if alert.Kind == envguard.KindAdmin {
		severity = PDSeverityCritical
	}
	dedupKey := fmt.Sprintf("launchsentinel-%s-%s", alert.Kind, alert.Name)
	_ = pd.TriggerAlert(severity, fmt.Sprintf("launchsentinel: %s denied (%s)", alert.Name, alert.Reason), dedupKey, map[string]interface{}{
		"kind":   string(alert.Kind),
		"name":   alert.Name,
		"mode":   string(alert.Mode),
		"reason": alert.Reason,
	})
}

// AlertKillSwitchEngaged fires a critical page the moment the kill
// switch trips, independent of the per-denial alert stream above.
func (pd *PagerDutyClient) AlertKillSwitchEngaged(reason string, revokedSessions int) error {
	return pd.TriggerAlert(
		PDSeverityCritical,
		fmt.Sprintf("launchsentinel: kill switch engaged (%s)", reason),
		"launchsentinel-kill-switch",
		map[string]interface{}{
			"reason":           reason,
			"revoked_sessions": revokedSessions,
		},
	)
}

// FanoutAlertSink dispatches every SecurityAlert to multiple sinks.
// Guard.SetAlertSink only holds one sink, so the wired system installs
// a FanoutAlertSink wrapping eventbus.Bus (for live subscribers) and an
// optional PagerDutyClient (for on-call paging).
type FanoutAlertSink struct {
	sinks []envguard.AlertSink
}

// NewFanoutAlertSink builds a sink that forwards to every non-nil sink
// given. Useful when PagerDuty is disabled — nil sinks are skipped.
func NewFanoutAlertSink(sinks ...envguard.AlertSink) *FanoutAlertSink {
	nonNil := make([]envguard.AlertSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &FanoutAlertSink{sinks: nonNil}
}

func (f *FanoutAlertSink) PublishSecurityAlert(alert envguard.SecurityAlert) {
	for _, s := range f.sinks {
		s.PublishSecurityAlert(alert)
	}
}
