// Package eventbus is the in-process fan-out of LiveEvents to many
// subscribers, each with its own filter. A subscriber that falls
// behind is dropped with a terminal SLOW_CONSUMER event rather than
// allowed to back-pressure the publisher.
package eventbus

import "time"

// Severity ranks a LiveEvent for filtering and display.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarn:     2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// EventType tags what kind of thing happened.
type EventType string

const (
	EventRunStarted    EventType = "RUN_STARTED"
	EventOpinion       EventType = "OPINION"
	EventDecision      EventType = "DECISION"
	EventSubmission    EventType = "SUBMISSION"
	EventSecurityAlert EventType = "SECURITY_ALERT"
	EventKillSwitch    EventType = "KILL_SWITCH"
	EventRunTerminal   EventType = "RUN_TERMINAL"
	EventHeartbeat     EventType = "heartbeat"
	EventSlowConsumer  EventType = "SLOW_CONSUMER"
)

// LiveEvent is one unit on the bus.
type LiveEvent struct {
	ID             string                 `json:"id"`
	RunID          string                 `json:"runId,omitempty"`
	Timestamp      time.Time              `json:"ts"`
	Type           EventType              `json:"type"`
	Agent          string                 `json:"agent,omitempty"`
	Severity       Severity               `json:"severity"`
	Message        string                 `json:"message,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	ActionCard     map[string]interface{} `json:"actionCard,omitempty"`
	ChainOfThought string                 `json:"chainOfThought,omitempty"`
}

// Filter restricts which events a subscription receives. A nil or
// empty slice field means "no restriction on that dimension".
type Filter struct {
	RunIDs      []string
	Agents      []string
	Severities  []Severity
	EventTypes  []EventType
	MinSeverity Severity
}

func (f Filter) matches(evt LiveEvent) bool {
	if evt.Type == EventHeartbeat || evt.Type == EventSlowConsumer || evt.Type == EventKillSwitch {
		return true
	}
	if len(f.RunIDs) > 0 && !contains(f.RunIDs, evt.RunID) {
		return false
	}
	if len(f.Agents) > 0 && !contains(f.Agents, evt.Agent) {
		return false
	}
	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, evt.Type) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, evt.Severity) {
		return false
	}
	if f.MinSeverity != "" && severityRank[evt.Severity] < severityRank[f.MinSeverity] {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsType(haystack []EventType, needle EventType) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsSeverity(haystack []Severity, needle Severity) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
