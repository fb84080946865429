package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/launchsentinel/core/chaindata"
)

// StepExecutor runs one BundleStep against a state fork of the given
// block and returns its result. The production implementation forks
// via an RPC debug_traceCall/eth_call-style dry run; kept as an
// interface so the simulator itself stays deterministic and testable.
type StepExecutor interface {
	Execute(ctx context.Context, blockHeight uint64, step BundleStep) (StepResult, error)
}

// Simulator runs a bundle step-by-step against a state fork, aborting
// on the first revert, and reports aggregate slippage against each
// step's declared minimum-out guard.
type Simulator struct {
	executor StepExecutor
}

// NewSimulator builds a Simulator over the given step executor.
func NewSimulator(executor StepExecutor) *Simulator {
	return &Simulator{executor: executor}
}

// Simulate executes every step of the bundle in order against the
// supplied network snapshot. A revert at any step aborts remaining
// steps; all already-executed step results are still reported.
func (s *Simulator) Simulate(ctx context.Context, bundle AtomicBundle, network chaindata.NetworkState) SimulationReceipt {
	receipt := SimulationReceipt{
		BundleID:        bundle.ID,
		SimulatedHeight: network.BlockHeight,
		SimulatedAt:     network.ObservedAt,
		FailedStepIndex: -1,
		Success:         true,
	}

	var totalMinOut, totalOut int64
	for i, step := range bundle.Steps {
		result, err := s.executor.Execute(ctx, network.BlockHeight, step)
		if err != nil {
			receipt.Success = false
			receipt.FailedStepIndex = i
			receipt.FailedStepReason = err.Error()
			break
		}
		receipt.StepResults = append(receipt.StepResults, result)
		if !result.Success {
			receipt.Success = false
			receipt.FailedStepIndex = i
			receipt.FailedStepReason = result.Revert
			if receipt.FailedStepReason == "" {
				receipt.FailedStepReason = fmt.Sprintf("step %d reverted", i)
			}
			break
		}
		totalMinOut += step.MinimumOutWei
		totalOut += result.OutWei
	}

	if receipt.Success && totalMinOut > 0 {
		receipt.AggregateSlippagePct = (float64(totalMinOut-totalOut) / float64(totalMinOut)) * 100
		if receipt.AggregateSlippagePct < 0 {
			receipt.AggregateSlippagePct = 0
		}
		receipt.MinimumOutSatisfied = totalOut >= totalMinOut
	}

	return receipt
}

// stale reports whether a receipt has aged past the enforcer's
// block-count or wall-clock window, whichever is stricter.
func stale(receipt SimulationReceipt, network chaindata.NetworkState, c Constraints, now time.Time) bool {
	if network.BlockHeight >= receipt.SimulatedHeight+c.StaleWindowBlocks {
		return true
	}
	if now.Sub(receipt.SimulatedAt) >= c.StaleWindowDuration {
		return true
	}
	return false
}
