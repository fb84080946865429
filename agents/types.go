// Package agents runs the five parallel analyzers that produce one
// AgentOpinion each per run: scout, macro, onchain, risk, adversarial.
package agents

import (
	"context"
	"time"

	"github.com/launchsentinel/core/chaindata"
	"github.com/launchsentinel/core/consensus"
)

// NewsItem is one news signal in a bundle.
type NewsItem struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	Tickers     []string  `json:"tickers,omitempty"`
	Sentiment   *float64  `json:"sentiment,omitempty"`
}

// SocialItem is one social signal in a bundle.
type SocialItem struct {
	Platform       string  `json:"platform"`
	AuthorID       string  `json:"authorId"`
	IsInfluencer   bool    `json:"isInfluencer"`
	EngagementRate float64 `json:"engagementRate"`
	Body           string  `json:"body"`
}

// OnChainSnapshot is the at-most-one on-chain observation in a bundle.
type OnChainSnapshot struct {
	ChainID            int64   `json:"chainId"`
	BlockHeight         uint64  `json:"blockHeight"`
	GasPriceWei         int64   `json:"gasPriceWei"`
	TargetToken         string  `json:"targetToken,omitempty"`
	PoolLiquidity       chaindata.PoolLiquidity `json:"poolLiquidity"`
	BondingProgressPct  float64 `json:"bondingProgressPct"`
	HolderCount         int     `json:"holderCount"`
}

// MemorySimilarity is one retrieved memory item referenced by a bundle.
type MemorySimilarity struct {
	Fingerprint         string   `json:"fingerprint"`
	CosineScore         float64  `json:"cosineScore"`
	HistoricalImpactPct *float64 `json:"historicalImpactPct,omitempty"`
}

// SignalBundle is the immutable input to one run; hashing it produces
// the run's input checksum.
type SignalBundle struct {
	News     []NewsItem         `json:"news,omitempty"`
	Social   []SocialItem       `json:"social,omitempty"`
	OnChain  *OnChainSnapshot   `json:"onChain,omitempty"`
	Memories []MemorySimilarity `json:"memories,omitempty"`
}

// AnalyzerInput is shared, read-only context handed to every analyzer.
// No analyzer may see another's output.
type AnalyzerInput struct {
	Query  string
	Bundle SignalBundle
}

// Analyzer produces exactly one AgentOpinion for a run. Shape mirrors a
// provider connector: a name for identification, a bounded-context
// call, and a health-style degraded path on failure.
type Analyzer interface {
	Role() consensus.Role
	Analyze(ctx context.Context, input AnalyzerInput) (consensus.AgentOpinion, error)
}
