package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/chaindata"
	"github.com/launchsentinel/core/config"
	"github.com/launchsentinel/core/consensus"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/httpapi"
	"github.com/launchsentinel/core/logger"
	"github.com/launchsentinel/core/memory"
	"github.com/launchsentinel/core/metadata"
	"github.com/launchsentinel/core/nadfun"
	"github.com/launchsentinel/core/observability"
	"github.com/launchsentinel/core/orchestrator"
	"github.com/launchsentinel/core/reputation"
	"github.com/launchsentinel/core/runledger"
	"github.com/launchsentinel/core/scanner"
	"github.com/launchsentinel/core/sessionkey"
	"github.com/launchsentinel/core/simulate"
	"github.com/launchsentinel/core/submission"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Str("mode", string(cfg.InitialMode)).Msg("launchsentinel agent starting")

	guard := envguard.New(cfg, log)
	bus := eventbus.New(log)

	var alertSinks []envguard.AlertSink
	alertSinks = append(alertSinks, bus)

	var pagerDuty *observability.PagerDutyClient
	if key := os.Getenv("PAGERDUTY_ROUTING_KEY"); key != "" {
		pagerDuty = observability.NewPagerDutyClient(observability.PagerDutyConfig{RoutingKey: key, Enabled: true, SourceName: "launchsentinel"}, log)
		alertSinks = append(alertSinks, pagerDuty)
	}
	guard.SetAlertSink(observability.NewFanoutAlertSink(alertSinks...))

	metrics := observability.NewMetrics(log)
	tracer := observability.NewTracer(log, observability.NewLogExporter(log), 1.0)

	var datadog *observability.DatadogExporter
	if addr := os.Getenv("DATADOG_STATSD_ADDR"); addr != "" {
		dd, err := observability.NewDatadogExporter(observability.DatadogConfig{Address: addr}, log)
		if err != nil {
			log.Warn().Err(err).Msg("datadog exporter init failed")
		} else {
			datadog = dd
		}
	}

	var splunk *observability.SplunkForwarder
	if hecURL := os.Getenv("SPLUNK_HEC_URL"); hecURL != "" {
		splunk = observability.NewSplunkForwarder(observability.SplunkConfig{
			HECURL:  hecURL,
			Token:   os.Getenv("SPLUNK_HEC_TOKEN"),
			Enabled: true,
		}, log)
	}

	scan := scanner.New()
	for _, rule := range scanner.DefaultRules() {
		scan.AddRule(rule)
	}

	embedder := memory.NewResilientEmbedder(
		memory.NewHTTPEmbedder("primary", cfg.VectorStoreURL, cfg.EmbeddingProviderKey, "text-embedding-3-small", 10*time.Second),
		memory.NewHTTPEmbedder("fallback", cfg.VectorStoreURL, cfg.EmbeddingFallbackKey, "text-embedding-3-small", 10*time.Second),
		log,
	)
	memoryEngine := memory.NewEngine(embedder, log,
		memory.WithDedupThreshold(cfg.DedupThreshold),
		memory.WithWorkers(cfg.IndexerWorkers),
		memory.WithBatchSize(cfg.IndexerBatchSize),
	)
	memoryCtx, cancelMemory := context.WithCancel(context.Background())
	memoryEngine.Start(memoryCtx)

	analyzers := buildAnalyzers(cfg, scan, log)
	runner := agents.NewRunner(analyzers, cfg.RPCCallTimeout)

	var sealKey [32]byte
	if _, err := rand.Read(sealKey[:]); err != nil {
		log.Fatal().Err(err).Msg("failed to generate session-key seal material")
	}
	sessions := sessionkey.NewManager(guard, sealKey, log)

	nadfunClient := nadfun.New(nadfun.Config{BaseURL: cfg.NadFunBaseURL, RPM: cfg.NadFunRPM, Timeout: cfg.RPCCallTimeout}, log)

	evmClient, err := chaindata.NewRPCClient(cfg.RPCURL, nadfunClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial chain RPC")
	}
	chain := chaindata.NewProvider(evmClient, cfg.ChainID, log)

	simulator := simulate.NewSimulator(simulate.NewRPCStepExecutor(evmClient))
	enforcer := simulate.NewEnforcer(simulate.DefaultConstraints(cfg.DefaultBudgetCapWei))

	transport := submission.NewHTTPTransport(submission.RouteEndpoints{
		submission.RoutePrivateRelay:      os.Getenv("PRIVATE_RELAY_URL"),
		submission.RouteDeferredExecution: os.Getenv("DEFERRED_EXECUTION_URL"),
		submission.RoutePublicRPC:         cfg.RPCURL,
	}, cfg.SubmissionTimeout)

	var auditSink submission.AuditSink
	if splunk != nil {
		auditSink = splunk
	} else {
		auditSink = observability.NewSplunkForwarder(observability.SplunkConfig{}, log)
	}
	auditPipeline := submission.NewAuditPipeline(auditSink, log)
	nonceManager := submission.NewNonceManager(cfg.SubmissionTimeout)
	router := submission.NewRouter(transport, transport, nonceManager, auditPipeline, log)

	var pinProviders []metadata.PinProvider
	if cfg.PinataJWT != "" {
		pinProviders = append(pinProviders, metadata.NewPinataPinner(cfg.PinataJWT))
	}
	if cfg.InfuraAuth != "" {
		pinProviders = append(pinProviders, metadata.NewInfuraPinner(cfg.InfuraAuth))
	}
	var metadataPipeline *metadata.Pipeline
	if len(pinProviders) > 0 {
		metadataPipeline = metadata.NewPipeline(metadata.NewMultiPin(pinProviders, 1), metadata.DefaultRateLimitConfig(), log)
	}

	oracleRegistry := reputation.NewOracleRegistry()
	mockOracle := &reputation.MockOracle{}
	for _, kind := range []reputation.ActionKind{reputation.ActionSubmission, reputation.ActionReferral, reputation.ActionDataQuality, reputation.ActionGovernance} {
		oracleRegistry.Register(kind, mockOracle)
	}
	reputationLedger := reputation.NewLedger(oracleRegistry, log)

	ledger := runledger.NewLedger(log)

	thresholds := consensus.Thresholds{
		MinAgents:             cfg.MinAgentsForConsensus,
		AdversarialVetoThresh: cfg.AdversarialVetoThresh,
		ConfidenceThreshold:   cfg.ConfidenceThreshold,
		AgreementThreshold:    cfg.AgreementThreshold,
		RiskCap:               cfg.RiskCap,
		ManualApprovalActive:  cfg.InitialMode == config.ModeManualApproval,
	}

	orch := orchestrator.New(orchestrator.Deps{
		Scanner:      scan,
		MemoryEngine: memoryEngine,
		Runner:       runner,
		Thresholds:   thresholds,
		Sessions:     sessions,
		Simulator:    simulator,
		Enforcer:     enforcer,
		Chain:        chain,
		Router:       router,
		Metadata:     metadataPipeline,
		Reputation:   reputationLedger,
		RunLedger:    ledger,
		Bus:          bus,
		Guard:        guard,
		RunDeadline:  cfg.RunDeadline,
		Logger:       log,
	})

	var sweeper *orchestrator.Sweeper
	if schedule := os.Getenv("SWEEP_SCHEDULE"); schedule != "" {
		source := nadfun.NewSource(nadfunClient, nadfun.SourceConfig{
			SessionID: os.Getenv("SWEEP_SESSION_ID"),
			Account:   os.Getenv("SWEEP_ACCOUNT"),
			ChainID:   cfg.ChainID,
			Policy: submission.Policy{
				AllowPublicRPC:       cfg.DefaultBudgetCapWei > 0,
				PublicRPCMaxValueWei: cfg.PublicRPCValueCapWei,
				SessionBudgetWei:     cfg.DefaultBudgetCapWei,
			},
			DefaultBuyWei: cfg.DefaultBudgetCapWei,
		})
		s, err := orchestrator.NewSweeper(orch, source, schedule, log)
		if err != nil {
			log.Warn().Err(err).Msg("invalid sweep schedule, periodic discovery disabled")
		} else {
			sweeper = s
			sweeper.Start()
		}
	}

	promRegistry := prometheus.NewRegistry()
	server := httpapi.NewServer(httpapi.Deps{
		Config:       cfg,
		Orchestrator: orch,
		Guard:        guard,
		Sessions:     sessions,
		RunLedger:    ledger,
		Bus:          bus,
		Metrics:      metrics,
		PromRegistry: promRegistry,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RunDeadline + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("launchsentinel listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	if sweeper != nil {
		sweeper.Stop()
	}
	memoryEngine.Stop()
	cancelMemory()
	auditPipeline.Stop()
	tracer.Shutdown()
	if datadog != nil {
		datadog.Stop()
	}
	if splunk != nil {
		splunk.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("launchsentinel stopped gracefully")
	}
}

func buildAnalyzers(cfg *config.Config, scan *scanner.Scanner, log zerolog.Logger) []agents.Analyzer {
	backendFor := func(role string) agents.LLMBackend {
		return agents.NewHTTPChatBackend(role, cfg.VectorStoreURL, cfg.EmbeddingProviderKey, "gpt-4o-mini", cfg.RPCCallTimeout)
	}
	return []agents.Analyzer{
		agents.NewScoutAnalyzer(backendFor("scout")),
		agents.NewMacroAnalyzer(backendFor("macro")),
		agents.NewOnChainAnalyzer(backendFor("onchain")),
		agents.NewRiskAnalyzer(backendFor("risk")),
		agents.NewAdversarialAnalyzer(backendFor("adversarial"), scan),
	}
}
