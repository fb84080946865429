package agents

import (
	"context"
	"sync"
	"time"

	"github.com/launchsentinel/core/consensus"
)

// Runner fans an AnalyzerInput out to every configured analyzer in
// parallel and joins the results, following the provider multicall
// join pattern used elsewhere in the module. Results are appended in
// completion order, not analyzer-registration order — the run record
// mirrors that ordering per spec §5.
type Runner struct {
	analyzers      []Analyzer
	perAgentDeadline time.Duration
}

// NewRunner constructs a Runner over the five standard analyzers, or
// any custom set (useful for tests).
func NewRunner(analyzers []Analyzer, perAgentDeadline time.Duration) *Runner {
	if perAgentDeadline <= 0 {
		perAgentDeadline = 20 * time.Second
	}
	return &Runner{analyzers: analyzers, perAgentDeadline: perAgentDeadline}
}

// RunAll invokes every analyzer concurrently, enforcing the per-agent
// deadline independently for each. An analyzer that errors or misses
// its deadline contributes a degraded opinion instead of aborting the
// run for its peers.
func (r *Runner) RunAll(ctx context.Context, input AnalyzerInput) []consensus.AgentOpinion {
	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]consensus.AgentOpinion, 0, len(r.analyzers))

	for _, analyzer := range r.analyzers {
		wg.Add(1)
		go func(a Analyzer) {
			defer wg.Done()

			agentCtx, cancel := context.WithTimeout(ctx, r.perAgentDeadline)
			defer cancel()

			start := time.Now().UTC()
			opinion, err := a.Analyze(agentCtx, input)
			if err != nil {
				opinion = degradedOpinion(a.Role(), start, err.Error())
			} else if agentCtx.Err() != nil {
				opinion = degradedOpinion(a.Role(), start, "analyzer exceeded per-run deadline")
			}

			mu.Lock()
			results = append(results, opinion)
			mu.Unlock()
		}(analyzer)
	}

	wg.Wait()
	return results
}
