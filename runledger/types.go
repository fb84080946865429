// Package runledger is the append-only, content-addressed artifact
// for one orchestrator run: the frozen signal bundle, every agent
// opinion in completion order, the consensus decision, and an ordered
// audit log. A run is created once, appended to during execution, and
// frozen immutable at completion or error.
package runledger

import (
	"time"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/consensus"
)

// AuditEvent is one ordered entry in a run's audit log.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Tag       string                 `json:"tag"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Status tracks a run's lifecycle.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// RunRecord is the per-run artifact. Append-only while Status is
// StatusRunning; immutable and content-addressed once frozen.
type RunRecord struct {
	RunID         string                   `json:"runId"`
	SpecVersion   string                   `json:"specVersion"`
	SignalBundle  agents.SignalBundle      `json:"signalBundle"`
	Opinions      []consensus.AgentOpinion `json:"opinions"`
	Decision      *consensus.Decision      `json:"decision,omitempty"`
	AuditLog      []AuditEvent             `json:"auditLog"`
	StartedAt     time.Time                `json:"startedAt"`
	EndedAt       time.Time                `json:"endedAt,omitempty"`
	InputChecksum string                   `json:"inputChecksum"`
	Status        Status                   `json:"status"`
	ContentHash   string                   `json:"contentHash,omitempty"`
}
