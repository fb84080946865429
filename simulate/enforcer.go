package simulate

import (
	"fmt"
	"time"

	"github.com/launchsentinel/core/chaindata"
)

// Enforcer runs the deterministic, ordered list of constraint checks
// against a (bundle, receipt) pair, mirroring a priority-ordered rule
// engine's first-class-severity evaluation rather than a single
// boolean gate.
type Enforcer struct {
	constraints Constraints
}

// NewEnforcer builds an Enforcer over the given numeric thresholds.
func NewEnforcer(constraints Constraints) *Enforcer {
	return &Enforcer{constraints: constraints}
}

// Enforce evaluates every check in §4.8's table in order and derives
// canExecute = no critical violations AND not requiresManualApproval.
// riskScore comes from the consensus decision that authorized this
// bundle; manualApproval is set when that decision's status required
// human sign-off.
func (e *Enforcer) Enforce(bundle AtomicBundle, receipt SimulationReceipt, network chaindata.NetworkState, riskScore float64, requiresManualApproval bool, now time.Time) EnforcementResult {
	var violations []Violation
	c := e.constraints

	if !receipt.Success {
		violations = append(violations, Violation{
			Kind:     ViolationSimulationFailed,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("step %d failed: %s", receipt.FailedStepIndex, receipt.FailedStepReason),
		})
	}

	if stale(receipt, network, c, now) {
		violations = append(violations, Violation{
			Kind:     ViolationSimulationStale,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("simulated at block %d, now %d", receipt.SimulatedHeight, network.BlockHeight),
		})
	}

	if receipt.Success && receipt.AggregateSlippagePct > c.MaxSlippagePct {
		violations = append(violations, Violation{
			Kind:     ViolationSlippageBreach,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("aggregate slippage %.2f%% exceeds cap %.2f%%", receipt.AggregateSlippagePct, c.MaxSlippagePct),
		})
	}

	if maxCost := bundle.MaxAggCostWei; maxCost > c.SessionBudgetWei {
		violations = append(violations, Violation{
			Kind:     ViolationBudgetExceeded,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("max aggregate cost %d exceeds session budget %d", maxCost, c.SessionBudgetWei),
		})
	}

	if riskScore > c.MaxRiskScore {
		violations = append(violations, Violation{
			Kind:     ViolationRiskTooHigh,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("risk score %.2f exceeds cap %.2f", riskScore, c.MaxRiskScore),
		})
	}

	gasPrice := bundle.MaxFeePerGasWei + bundle.MaxPriorityWei
	if c.GasPriceCapWei > 0 && gasPrice > c.GasPriceCapWei {
		violations = append(violations, Violation{
			Kind:     ViolationGasPriceTooHigh,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("gas price %d exceeds cap %d", gasPrice, c.GasPriceCapWei),
		})
	} else if c.GasPriceWarnWei > 0 && gasPrice > c.GasPriceWarnWei {
		violations = append(violations, Violation{
			Kind:     ViolationGasPriceTooHigh,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("gas price %d exceeds warn threshold %d", gasPrice, c.GasPriceWarnWei),
		})
	}

	critical := false
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			critical = true
			break
		}
	}

	return EnforcementResult{
		Violations:             violations,
		RequiresManualApproval: requiresManualApproval,
		CanExecute:             !critical && !requiresManualApproval,
	}
}
