// Package simulate runs pre-flight state-fork simulation of an
// AtomicBundle and enforces a deterministic list of typed, severity-
// ranked constraint checks against the resulting receipt.
package simulate

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BundleStep is one all-or-nothing leg of an AtomicBundle.
type BundleStep struct {
	Target        common.Address `json:"target"`
	Selector      [4]byte        `json:"selector"`
	Calldata      []byte         `json:"calldata"`
	ValueWei      int64          `json:"valueWei"`
	MinimumOutWei int64          `json:"minimumOutWei"`
}

// AtomicBundle is a single-use submission unit. Steps execute all-or-
// nothing at simulation; the bundle id may be submitted at most once.
type AtomicBundle struct {
	ID              string       `json:"id"`
	Steps           []BundleStep `json:"steps"`
	MaxGasLimit     uint64       `json:"maxGasLimit"`
	MaxFeePerGasWei int64        `json:"maxFeePerGasWei"`
	MaxPriorityWei  int64        `json:"maxPriorityWei"`
	MaxAggCostWei   int64        `json:"maxAggCostWei"`
	SessionID       string       `json:"sessionId"`
	TargetBlock     uint64       `json:"targetBlock"` // 0 means "latest"
}

// StepResult is the simulated outcome of one BundleStep.
type StepResult struct {
	GasUsed uint64 `json:"gasUsed"`
	OutWei  int64  `json:"outWei"`
	Success bool   `json:"success"`
	Revert  string `json:"revert,omitempty"`
}

// SimulationReceipt is the output of pre-flight state-fork execution.
type SimulationReceipt struct {
	BundleID             string       `json:"bundleId"`
	SimulatedHeight      uint64       `json:"simulatedHeight"`
	SimulatedAt          time.Time    `json:"simulatedAt"`
	Success              bool         `json:"success"`
	FailedStepIndex      int          `json:"failedStepIndex"` // -1 when Success
	FailedStepReason     string       `json:"failedStepReason,omitempty"`
	StepResults          []StepResult `json:"stepResults"`
	AggregateSlippagePct float64      `json:"aggregateSlippagePct"`
	MinimumOutSatisfied  bool         `json:"minimumOutSatisfied"`
}

// Severity ranks a violation's blocking weight.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ViolationKind enumerates the deterministic constraint checks.
type ViolationKind string

const (
	ViolationSlippageBreach  ViolationKind = "slippage_breach"
	ViolationBudgetExceeded  ViolationKind = "budget_exceeded"
	ViolationRiskTooHigh     ViolationKind = "risk_too_high"
	ViolationGasPriceTooHigh  ViolationKind = "gas_price_too_high"
	ViolationSimulationStale  ViolationKind = "simulation_stale"
	ViolationSimulationFailed ViolationKind = "simulation_failed"
)

// Violation is one failed check against a (bundle, receipt) pair.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Severity Severity      `json:"severity"`
	Detail   string        `json:"detail"`
}

// Constraints carries the numeric thresholds the enforcer checks
// against. Defaults mirror spec's §4.8 table.
type Constraints struct {
	MaxSlippagePct      float64
	SessionBudgetWei    int64
	MaxRiskScore        float64
	GasPriceWarnWei     int64
	GasPriceCapWei      int64
	StaleWindowBlocks   uint64
	StaleWindowDuration time.Duration
}

// DefaultConstraints returns the numeric defaults named in §4.8.
func DefaultConstraints(sessionBudgetWei int64) Constraints {
	return Constraints{
		MaxSlippagePct:      2.5,
		SessionBudgetWei:    sessionBudgetWei,
		MaxRiskScore:        0.75,
		StaleWindowBlocks:   3,
		StaleWindowDuration: 1200 * time.Millisecond,
	}
}

// EnforcementResult is the output of the constraint enforcer.
type EnforcementResult struct {
	Violations            []Violation `json:"violations"`
	RequiresManualApproval bool       `json:"requiresManualApproval"`
	CanExecute             bool       `json:"canExecute"`
}
