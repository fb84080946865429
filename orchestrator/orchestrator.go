package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/chaindata"
	"github.com/launchsentinel/core/consensus"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/memory"
	"github.com/launchsentinel/core/metadata"
	"github.com/launchsentinel/core/reputation"
	"github.com/launchsentinel/core/runledger"
	"github.com/launchsentinel/core/scanner"
	"github.com/launchsentinel/core/sessionkey"
	"github.com/launchsentinel/core/simulate"
	"github.com/launchsentinel/core/submission"
)

// Orchestrator wires every other component into one run state machine.
// It holds no business logic of its own beyond sequencing and
// correlation — every decision is made by the component responsible
// for it.
type Orchestrator struct {
	scanner       *scanner.Scanner
	memoryEngine  *memory.Engine
	runner        *agents.Runner
	thresholds    consensus.Thresholds
	sessions      *sessionkey.Manager
	simulator     *simulate.Simulator
	enforcer      *simulate.Enforcer
	chain         *chaindata.Provider
	router        *submission.Router
	metadata      *metadata.Pipeline
	reputation    *reputation.Ledger
	runledger     *runledger.Ledger
	bus           *eventbus.Bus
	guard         *envguard.Guard
	runDeadline   time.Duration
	logger        zerolog.Logger
}

// Deps bundles every collaborator the orchestrator sequences.
// MemoryEngine, Chain, Bus, Metadata and Reputation are optional: the
// steps that use them are skipped when nil. The rest are required.
type Deps struct {
	Scanner      *scanner.Scanner
	MemoryEngine *memory.Engine
	Runner       *agents.Runner
	Thresholds   consensus.Thresholds
	Sessions     *sessionkey.Manager
	Simulator    *simulate.Simulator
	Enforcer     *simulate.Enforcer
	Chain        *chaindata.Provider
	Router       *submission.Router
	Metadata     *metadata.Pipeline
	Reputation   *reputation.Ledger
	RunLedger    *runledger.Ledger
	Bus          *eventbus.Bus
	Guard        *envguard.Guard
	RunDeadline  time.Duration
	Logger       zerolog.Logger
}

// New builds an Orchestrator from its wired dependencies.
func New(d Deps) *Orchestrator {
	if d.RunDeadline <= 0 {
		d.RunDeadline = 30 * time.Second
	}
	return &Orchestrator{
		scanner:      d.Scanner,
		memoryEngine: d.MemoryEngine,
		runner:       d.Runner,
		thresholds:   d.Thresholds,
		sessions:     d.Sessions,
		simulator:    d.Simulator,
		enforcer:     d.Enforcer,
		chain:        d.Chain,
		router:       d.Router,
		metadata:     d.Metadata,
		reputation:   d.Reputation,
		runledger:    d.RunLedger,
		bus:          d.Bus,
		guard:        d.Guard,
		runDeadline:  d.RunDeadline,
		logger:       d.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Execute runs one opportunity through the full pipeline: sanitize the
// query, recall similar memories, fan out the five analyzers,
// aggregate consensus, validate against the session key, simulate and
// enforce the bundle, and finally submit — emitting a run record and
// live events at every stage and short-circuiting (without panicking
// or leaving partial on-chain state) the moment any gate rejects.
func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) RunOutcome {
	correlationID := uuid.NewString()
	startedAt := time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, o.runDeadline)
	defer cancel()

	logger := o.logger.With().Str("correlation_id", correlationID).Logger()

	outcome := RunOutcome{CorrelationID: correlationID, StartedAt: startedAt}

	scanResult := o.scanner.Scan(req.Query)
	if scanResult.Blocked {
		outcome = outcome.blockedAt(StageScan, "input scanner blocked query")
		o.emit(correlationID, eventbus.EventSecurityAlert, eventbus.SeverityCritical, outcome.BlockReason, nil)
		outcome.EndedAt = time.Now().UTC()
		return outcome
	}

	bundle := agents.SignalBundle{}
	if o.memoryEngine != nil {
		similar, err := o.memoryEngine.FindSimilar(ctx, memory.SimilarityQuery{Text: req.Query, Limit: 20})
		if err != nil {
			logger.Warn().Err(err).Msg("memory similarity lookup failed, continuing without it")
		} else {
			for _, ranked := range similar.Items {
				impact := ranked.Item.Outcome
				var impactPct *float64
				if impact != nil {
					v := impact.ImpactPct
					impactPct = &v
				}
				bundle.Memories = append(bundle.Memories, agents.MemorySimilarity{
					Fingerprint:         ranked.Item.ContentHash,
					CosineScore:         ranked.Score,
					HistoricalImpactPct: impactPct,
				})
			}
		}
	}

	record, err := o.runledger.CreateRun("v1", bundle, startedAt)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open run record")
		outcome = outcome.blockedAt(StageMemory, "failed to open run record")
		outcome.EndedAt = time.Now().UTC()
		return outcome
	}
	outcome.RunID = record.RunID
	o.emit(record.RunID, eventbus.EventRunStarted, eventbus.SeverityInfo, "run started", nil)

	opinions := o.runner.RunAll(ctx, agents.AnalyzerInput{Query: req.Query, Bundle: bundle})
	for _, opinion := range opinions {
		if err := o.runledger.AppendOpinion(record.RunID, opinion, time.Now().UTC()); err != nil {
			logger.Warn().Err(err).Msg("failed to append opinion to run record")
		}
		o.emit(record.RunID, eventbus.EventOpinion, eventbus.SeverityInfo, string(opinion.Recommendation), map[string]interface{}{
			"role":       string(opinion.Role),
			"confidence": opinion.Confidence,
		})
	}

	decision := consensus.Aggregate(opinions, o.thresholds)
	if err := o.runledger.SetDecision(record.RunID, decision, time.Now().UTC()); err != nil {
		logger.Warn().Err(err).Msg("failed to set decision on run record")
	}
	o.emit(record.RunID, eventbus.EventDecision, eventbus.SeverityInfo, string(decision.Status), map[string]interface{}{
		"confidence": decision.AveragedConfidence,
		"risk":       decision.AveragedRisk,
	})

	if decision.Status != consensus.StatusExecute {
		return o.terminate(record.RunID, outcome, StageConsensus, "consensus did not reach EXECUTE: "+string(decision.Status))
	}

	signedOp := sessionkey.SignedOp{
		SessionID: req.SessionID,
		Selector:  req.Selector,
		Target:    req.To,
		AmountWei: req.ValueWei,
		Nonce:     req.Nonce,
	}
	validation := o.sessions.Validate(signedOp)
	if !validation.Valid {
		reason := "session validation failed"
		if validation.Err != nil {
			reason = validation.Err.Error()
		}
		return o.terminate(record.RunID, outcome, StageSessionGate, reason)
	}

	network := chaindata.NetworkState{ChainID: req.ChainID, ObservedAt: time.Now().UTC()}
	if o.chain != nil {
		if ns, err := o.chain.NetworkState(ctx); err == nil {
			network = ns
		} else {
			logger.Warn().Err(err).Msg("failed to fetch network state, using a fallback snapshot")
		}
	}

	receipt := o.simulator.Simulate(ctx, req.Bundle, network)
	enforcement := o.enforcer.Enforce(req.Bundle, receipt, network, decision.AveragedRisk, false, time.Now().UTC())
	if !enforcement.CanExecute {
		return o.terminate(record.RunID, outcome, StageSimulate, "simulation enforcement blocked execution")
	}

	if err := o.sessions.Record(signedOp); err != nil {
		return o.terminate(record.RunID, outcome, StageSessionGate, "failed to record session spend: "+err.Error())
	}

	submitReq := submission.SubmitRequest{
		CorrelationID: correlationID,
		PlanID:        record.RunID,
		SimulationID:  receipt.BundleID,
		BundleID:      req.Bundle.ID,
		SessionID:     req.SessionID,
		Account:       req.Account,
		To:            req.To,
		ValueWei:      req.ValueWei,
		Policy:        req.Policy,
	}
	submitOutcome, err := o.router.Submit(ctx, submitReq)
	if err != nil {
		if rollbackErr := o.sessions.Rollback(signedOp); rollbackErr != nil {
			logger.Warn().Err(rollbackErr).Msg("failed to roll back session spend after submission failure")
		}
		return o.terminate(record.RunID, outcome, StageSubmit, err.Error())
	}
	outcome.Submitted = submitOutcome.Success
	outcome.SubmitOutcome = &submitOutcome
	o.emit(record.RunID, eventbus.EventSubmission, eventbus.SeverityInfo, string(submitOutcome.Route), map[string]interface{}{
		"success": submitOutcome.Success,
		"txHash":  submitOutcome.TxHash,
	})

	o.runSideEffects(ctx, req, submitOutcome, logger)

	status := runledger.StatusComplete
	if !submitOutcome.Success {
		status = runledger.StatusError
	}
	frozen, err := o.runledger.Freeze(record.RunID, status, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("failed to freeze run record")
	} else {
		outcome.EndedAt = frozen.EndedAt
	}
	o.emit(record.RunID, eventbus.EventRunTerminal, eventbus.SeverityInfo, string(status), nil)

	outcome.Stage = StageSideEffects
	return outcome
}

func (o *Orchestrator) runSideEffects(ctx context.Context, req RunRequest, submitOutcome submission.SubmitOutcome, logger zerolog.Logger) {
	if o.metadata != nil && req.Milestone != "" && submitOutcome.Success {
		if _, err := o.metadata.Trigger(ctx, req.Milestone, req.Metadata, time.Now().UTC()); err != nil {
			logger.Warn().Err(err).Msg("metadata milestone trigger failed")
		}
	}
	if o.reputation != nil && req.UserID != "" && req.ReputationAction != "" {
		if _, err := o.reputation.CreditAction(ctx, req.UserID, req.ReputationAction, []byte(submitOutcome.TxHash), 10, time.Now().UTC()); err != nil {
			logger.Warn().Err(err).Msg("reputation credit failed")
		}
	}
}

func (o *Orchestrator) terminate(runID string, outcome RunOutcome, stage Stage, reason string) RunOutcome {
	outcome = outcome.blockedAt(stage, reason)
	o.emit(runID, eventbus.EventRunTerminal, eventbus.SeverityWarn, reason, map[string]interface{}{"stage": string(stage)})
	if _, err := o.runledger.Freeze(runID, runledger.StatusError, time.Now().UTC()); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("failed to freeze run record after early termination")
	}
	outcome.EndedAt = time.Now().UTC()
	return outcome
}

func (o *Orchestrator) emit(runID string, eventType eventbus.EventType, severity eventbus.Severity, message string, data map[string]interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(eventbus.LiveEvent{
		RunID:    runID,
		Type:     eventType,
		Severity: severity,
		Message:  message,
		Data:     data,
	})
}
