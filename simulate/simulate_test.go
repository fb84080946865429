package simulate_test

import (
	"context"
	"testing"
	"time"

	"github.com/launchsentinel/core/chaindata"
	"github.com/launchsentinel/core/simulate"
)

type scriptedExecutor struct {
	results []simulate.StepResult
	errs    []error
}

func (s *scriptedExecutor) Execute(ctx context.Context, blockHeight uint64, step simulate.BundleStep) (simulate.StepResult, error) {
	idx := len(step.Calldata) // each test step encodes its own index via calldata length
	if idx < len(s.errs) && s.errs[idx] != nil {
		return simulate.StepResult{}, s.errs[idx]
	}
	return s.results[idx], nil
}

func stepWithIndex(i int) simulate.BundleStep {
	return simulate.BundleStep{Calldata: make([]byte, i), MinimumOutWei: 100}
}

func TestSimulateSuccessComputesSlippage(t *testing.T) {
	exec := &scriptedExecutor{
		results: []simulate.StepResult{
			{Success: true, OutWei: 95, GasUsed: 21000},
			{Success: true, OutWei: 95, GasUsed: 21000},
		},
		errs: make([]error, 2),
	}
	sim := simulate.NewSimulator(exec)
	bundle := simulate.AtomicBundle{
		ID:    "bundle-1",
		Steps: []simulate.BundleStep{stepWithIndex(0), stepWithIndex(1)},
	}
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: time.Now()}

	receipt := sim.Simulate(context.Background(), bundle, network)
	if !receipt.Success {
		t.Fatalf("expected success, got failure at step %d: %s", receipt.FailedStepIndex, receipt.FailedStepReason)
	}
	if receipt.AggregateSlippagePct <= 0 {
		t.Fatalf("expected positive slippage from 95/100 outs, got %.4f", receipt.AggregateSlippagePct)
	}
	if receipt.MinimumOutSatisfied {
		t.Fatal("expected minimum-out not satisfied when actual out is below minimum")
	}
}

func TestSimulateAbortsOnRevert(t *testing.T) {
	exec := &scriptedExecutor{
		results: []simulate.StepResult{
			{Success: true, OutWei: 100},
			{Success: false, Revert: "INSUFFICIENT_LIQUIDITY"},
		},
		errs: make([]error, 2),
	}
	sim := simulate.NewSimulator(exec)
	bundle := simulate.AtomicBundle{
		ID:    "bundle-2",
		Steps: []simulate.BundleStep{stepWithIndex(0), stepWithIndex(1)},
	}
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: time.Now()}

	receipt := sim.Simulate(context.Background(), bundle, network)
	if receipt.Success {
		t.Fatal("expected failure on revert")
	}
	if receipt.FailedStepIndex != 1 {
		t.Fatalf("expected failure at step 1, got %d", receipt.FailedStepIndex)
	}
	if receipt.FailedStepReason != "INSUFFICIENT_LIQUIDITY" {
		t.Fatalf("expected revert reason propagated, got %q", receipt.FailedStepReason)
	}
}

func successfulReceipt(bundleID string, height uint64, at time.Time) simulate.SimulationReceipt {
	return simulate.SimulationReceipt{
		BundleID:             bundleID,
		SimulatedHeight:      height,
		SimulatedAt:          at,
		Success:              true,
		FailedStepIndex:      -1,
		AggregateSlippagePct: 1.0,
		MinimumOutSatisfied:  true,
	}
}

func TestEnforceCanExecuteWhenAllChecksPass(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(1_000_000))
	now := time.Now()
	bundle := simulate.AtomicBundle{MaxAggCostWei: 500, MaxFeePerGasWei: 10, MaxPriorityWei: 2}
	receipt := successfulReceipt("b", 100, now)
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: now}

	result := enforcer.Enforce(bundle, receipt, network, 0.2, false, now)
	if !result.CanExecute {
		t.Fatalf("expected canExecute, got violations: %+v", result.Violations)
	}
}

func TestEnforceBudgetExceededIsCritical(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(100))
	now := time.Now()
	bundle := simulate.AtomicBundle{MaxAggCostWei: 500}
	receipt := successfulReceipt("b", 100, now)
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: now}

	result := enforcer.Enforce(bundle, receipt, network, 0.1, false, now)
	if result.CanExecute {
		t.Fatal("expected canExecute false when budget exceeded")
	}
	found := false
	for _, v := range result.Violations {
		if v.Kind == simulate.ViolationBudgetExceeded && v.Severity == simulate.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected budget_exceeded critical violation, got %+v", result.Violations)
	}
}

func TestEnforceStaleSimulationBlocksExecution(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(1_000_000))
	simAt := time.Now().Add(-5 * time.Second)
	receipt := successfulReceipt("b", 100, simAt)
	network := chaindata.NetworkState{BlockHeight: 110, ObservedAt: time.Now()}

	result := enforcer.Enforce(simulate.AtomicBundle{}, receipt, network, 0.1, false, time.Now())
	if result.CanExecute {
		t.Fatal("expected canExecute false for stale simulation")
	}
}

func TestEnforceRiskTooHighIsCritical(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(1_000_000))
	now := time.Now()
	receipt := successfulReceipt("b", 100, now)
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: now}

	result := enforcer.Enforce(simulate.AtomicBundle{}, receipt, network, 0.9, false, now)
	if result.CanExecute {
		t.Fatal("expected canExecute false for risk above cap")
	}
}

func TestEnforceManualApprovalBlocksEvenWithoutViolations(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(1_000_000))
	now := time.Now()
	receipt := successfulReceipt("b", 100, now)
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: now}

	result := enforcer.Enforce(simulate.AtomicBundle{}, receipt, network, 0.1, true, now)
	if result.CanExecute {
		t.Fatal("expected canExecute false when manual approval required")
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, manual approval alone should block: %+v", result.Violations)
	}
}

func TestEnforceSimulationFailedIsCritical(t *testing.T) {
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(1_000_000))
	now := time.Now()
	receipt := simulate.SimulationReceipt{
		BundleID:         "b",
		SimulatedHeight:  100,
		SimulatedAt:      now,
		Success:          false,
		FailedStepIndex:  0,
		FailedStepReason: "revert",
	}
	network := chaindata.NetworkState{BlockHeight: 100, ObservedAt: now}

	result := enforcer.Enforce(simulate.AtomicBundle{}, receipt, network, 0.1, false, now)
	if result.CanExecute {
		t.Fatal("expected canExecute false on simulation failure")
	}
}
