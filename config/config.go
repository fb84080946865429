package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode mirrors envguard.Mode but is kept as a plain string here so config
// has no import-cycle dependency on the envguard package.
type Mode string

const (
	ModeDemo            Mode = "DEMO"
	ModeReadonly        Mode = "READONLY"
	ModeManualApproval  Mode = "MANUAL_APPROVAL"
	ModeAutonomous      Mode = "AUTONOMOUS"
)

// Config holds all process configuration values, loaded once at startup.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Network
	Network string // mainnet | testnet | devnet
	ChainID int64
	RPCURL  string

	// Mode / kill switch
	InitialMode     Mode
	DemoMode        bool
	ReadonlyDefault bool
	ManualApproval  bool
	KillSwitchActive bool

	// Vector store
	VectorStoreURL        string
	VectorCollection      string
	EmbeddingProviderKey  string
	EmbeddingFallbackKey  string
	DedupThreshold        float64
	IndexerWorkers        int
	IndexerBatchSize      int

	// IPFS pin providers
	PinataJWT  string
	InfuraAuth string

	// Consensus thresholds
	ConfidenceThreshold   float64
	AdversarialVetoThresh float64
	AgreementThreshold    float64
	MinAgentsForConsensus int
	RiskCap               float64

	// Simulation / enforcement
	SlippageCapPct      float64
	StaleSimBlocks      int64
	StaleSimMs          int64
	DefaultBudgetCapWei int64

	// Submission
	SubmissionTimeout   time.Duration
	PublicRPCValueCapWei int64
	AuditFlushInterval  time.Duration

	// Per-run deadlines
	RunDeadline    time.Duration
	RPCCallTimeout time.Duration
	RPCMaxRetries  int

	// Nad-fun style client
	NadFunBaseURL string
	NadFunRPM     int

	// Admin API
	AdminAPIKey        string
	AdminMaxConcurrent int
	AdminRateLimitRPM  int

	// HTTP handler deadline (the run event stream is exempt)
	RequestTimeout time.Duration

	// Run-record / audit persistence roots
	RunRecordDir string
	AuditLogDir  string

	// Body limits
	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GRACEFUL_TIMEOUT_SEC", 15)

	demoMode := getEnvBool("DEMO_MODE", false)
	manualApproval := getEnvBool("MANUAL_APPROVAL", true)
	readonlyDefault := getEnvBool("MAINNET_READONLY", true)

	cfg := &Config{
		Addr:            getEnv("AGENT_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,

		Network: getEnv("NETWORK", "testnet"),
		ChainID: int64(getEnvInt("CHAIN_ID", 10143)),
		RPCURL:  getEnv("RPC_URL", "http://localhost:8545"),

		DemoMode:         demoMode,
		ReadonlyDefault:  readonlyDefault,
		ManualApproval:   manualApproval,
		KillSwitchActive: getEnvBool("KILL_SWITCH_ACTIVE", false),

		VectorStoreURL:       getEnv("VECTOR_STORE_URL", "http://localhost:6333"),
		VectorCollection:     getEnv("VECTOR_COLLECTION", "launch-signals"),
		EmbeddingProviderKey: getEnv("EMBEDDING_PROVIDER_KEY", ""),
		EmbeddingFallbackKey: getEnv("EMBEDDING_FALLBACK_KEY", ""),
		DedupThreshold:       getEnvFloat("DEDUP_THRESHOLD", 0.99),
		IndexerWorkers:       getEnvInt("INDEXER_WORKERS", 3),
		IndexerBatchSize:     getEnvInt("INDEXER_BATCH_SIZE", 10),

		PinataJWT:  getEnv("PINATA_JWT", ""),
		InfuraAuth: getEnv("INFURA_AUTH", ""),

		ConfidenceThreshold:   getEnvFloat("CONSENSUS_CONFIDENCE_THRESHOLD", 0.85),
		AdversarialVetoThresh: getEnvFloat("ADVERSARIAL_VETO_THRESHOLD", 0.90),
		AgreementThreshold:    getEnvFloat("CONSENSUS_AGREEMENT_THRESHOLD", 0.60),
		MinAgentsForConsensus: getEnvInt("MIN_AGENTS_FOR_CONSENSUS", 3),
		RiskCap:               getEnvFloat("CONSENSUS_RISK_CAP", 0.75),

		SlippageCapPct:      getEnvFloat("SLIPPAGE_CAP_PCT", 2.5),
		StaleSimBlocks:      int64(getEnvInt("STALE_SIMULATION_BLOCKS", 3)),
		StaleSimMs:          int64(getEnvInt("STALE_SIMULATION_MS", 1200)),
		DefaultBudgetCapWei: int64(getEnvInt("DEFAULT_BUDGET_CAP_WEI", 0)),

		SubmissionTimeout:    time.Duration(getEnvInt("SUBMISSION_TIMEOUT_SEC", 30)) * time.Second,
		PublicRPCValueCapWei: int64(getEnvFloat("PUBLIC_RPC_VALUE_CAP_NATIVE", 0.5) * 1e18),
		AuditFlushInterval:   time.Duration(getEnvInt("AUDIT_FLUSH_INTERVAL_SEC", 5)) * time.Second,

		RunDeadline:    time.Duration(getEnvInt("RUN_DEADLINE_SEC", 120)) * time.Second,
		RPCCallTimeout: time.Duration(getEnvInt("RPC_CALL_TIMEOUT_SEC", 10)) * time.Second,
		RPCMaxRetries:  getEnvInt("RPC_MAX_RETRIES", 3),

		NadFunBaseURL: getEnv("NADFUN_BASE_URL", "https://api.nad.fun"),
		NadFunRPM:     getEnvInt("NADFUN_RPM", 60),

		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		AdminMaxConcurrent: getEnvInt("ADMIN_MAX_CONCURRENT", 4),
		AdminRateLimitRPM:  getEnvInt("ADMIN_RATE_LIMIT_RPM", 30),

		RequestTimeout: time.Duration(getEnvInt("HTTP_REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		RunRecordDir: getEnv("RUN_RECORD_DIR", "./data/runs"),
		AuditLogDir:  getEnv("AUDIT_LOG_DIR", "./data/audit"),

		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1*1024*1024)),

		CORSAllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	cfg.InitialMode = resolveInitialMode(cfg)
	return cfg
}

// resolveInitialMode derives the startup Mode from the individual boolean
// flags, per spec.md §6: demo wins first, then explicit readonly, then
// manual-approval, defaulting to autonomous only when none apply.
func resolveInitialMode(cfg *Config) Mode {
	switch {
	case cfg.DemoMode:
		return ModeDemo
	case cfg.ReadonlyDefault:
		return ModeReadonly
	case cfg.ManualApproval:
		return ModeManualApproval
	default:
		return ModeAutonomous
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
