// Package orchestrator wires scanning, memory recall, the five-agent
// fan-out, consensus aggregation, session-key validation, atomic-bundle
// simulation and enforcement, and submission into one typed run state
// machine. Every other package's output flows into the next stage's
// input with no hidden state outside the RunRecord being built.
package orchestrator

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/launchsentinel/core/metadata"
	"github.com/launchsentinel/core/reputation"
	"github.com/launchsentinel/core/sessionkey"
	"github.com/launchsentinel/core/simulate"
	"github.com/launchsentinel/core/submission"
)

// RunRequest is one opportunity to evaluate end to end.
type RunRequest struct {
	Query     string
	Token     common.Address
	ChainID   int64
	SessionID string
	Selector  sessionkey.Selector
	Nonce     uint64
	Account   string
	To        string
	ValueWei  int64
	Policy    submission.Policy
	Bundle    simulate.AtomicBundle

	UserID           string
	ReputationAction reputation.ActionKind

	Milestone metadata.MilestoneKind
	Metadata  metadata.Descriptor
}

// Stage names the point in the pipeline a run stopped at, whether it
// finished normally or was rejected/blocked partway through.
type Stage string

const (
	StageScan         Stage = "scan"
	StageMemory       Stage = "memory"
	StageAgents       Stage = "agents"
	StageConsensus    Stage = "consensus"
	StageSessionGate  Stage = "session_gate"
	StageSimulate     Stage = "simulate"
	StageSubmit       Stage = "submit"
	StageSideEffects  Stage = "side_effects"
)

// RunOutcome is the terminal result of one orchestrated run.
type RunOutcome struct {
	RunID         string
	CorrelationID string
	Stage         Stage
	Blocked       bool
	BlockReason   string
	Submitted     bool
	SubmitOutcome *submission.SubmitOutcome
	StartedAt     time.Time
	EndedAt       time.Time
}

func (o RunOutcome) blockedAt(stage Stage, reason string) RunOutcome {
	o.Stage = stage
	o.Blocked = true
	o.BlockReason = reason
	return o
}
