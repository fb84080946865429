// Package memory is the boundary over an external vector/ANN database.
// It embeds content, retrieves similar items, and deduplicates near-
// identical entries before they reach the index — the semantic context
// store feeding the agent runner.
package memory

import "time"

// SourceKind classifies the origin of an indexed item.
type SourceKind string

const (
	SourceNews        SourceKind = "news"
	SourceSocial      SourceKind = "social"
	SourceMarket      SourceKind = "market"
	SourceTransaction SourceKind = "transaction"
	SourceDecision    SourceKind = "decision"
	SourceQuery       SourceKind = "query"
	SourceDocument    SourceKind = "document"
)

// MarketOutcome labels the realized market effect of an item, assigned
// after the fact (e.g. once a price move following a news item resolves).
type MarketOutcome struct {
	Direction    string  `json:"direction"` // up | down | neutral
	ImpactPct    float64 `json:"impactPct"`
	TimeToImpact time.Duration `json:"timeToImpact"`
	Confidence   float64 `json:"confidence"`
}

// MemoryItem is one vector-store row.
type MemoryItem struct {
	ID            string         `json:"id"`
	Vector        []float64      `json:"-"`
	ContentHash   string         `json:"contentHash"`
	Content       string         `json:"content"`
	Source        SourceKind     `json:"source"`
	Tickers       []string       `json:"tickers,omitempty"`
	ContentTime   time.Time      `json:"contentTime"`
	IngestTime    time.Time      `json:"ingestTime"`
	Sentiment     bool           `json:"sentiment"`
	SentimentScore float64       `json:"sentimentScore"`
	Outcome       *MarketOutcome `json:"outcome,omitempty"`
	Labeled       bool           `json:"labeled"`
	EmbeddingModel string        `json:"embeddingModel"`
	IsDuplicate   bool           `json:"isDuplicate"`
	CanonicalID   string         `json:"canonicalId,omitempty"`
}

// IndexMetadata is the caller-supplied metadata accompanying content to
// be indexed.
type IndexMetadata struct {
	Source      SourceKind
	Tickers     []string
	ContentTime time.Time
	Sentiment   bool
	SentimentScore float64
}

// IndexReceipt is returned immediately; the embedding + upsert happens
// asynchronously on the worker pool.
type IndexReceipt struct {
	Accepted    bool   `json:"accepted"`
	PendingID   string `json:"pendingId"`
}

// IndexOutcome is the eventual result of one asynchronous index job,
// available via Engine.Outcome.
type IndexOutcome struct {
	ID          string `json:"id"`
	IsDuplicate bool   `json:"isDuplicate"`
	CanonicalID string `json:"canonicalId,omitempty"`
	Err         error  `json:"-"`
}

// SimilarityFilter narrows a FindSimilar query.
type SimilarityFilter struct {
	Source  SourceKind
	Tickers []string
}

// SimilarityQuery parameters.
type SimilarityQuery struct {
	Text     string
	Limit    int
	MinScore float64
	Filter   *SimilarityFilter
}

// RankedItem is one similarity search hit.
type RankedItem struct {
	Item  MemoryItem `json:"item"`
	Score float64    `json:"score"`
}

// PriceImpactBreakdown summarizes outcome labels across returned items.
type PriceImpactBreakdown struct {
	Up              int     `json:"up"`
	Down            int     `json:"down"`
	Neutral         int     `json:"neutral"`
	MeanImpactPct   float64 `json:"meanImpactPct"`
	MeanTimeToImpactMs float64 `json:"meanTimeToImpactMs"`
}

// TemporalHistogram buckets items by recency.
type TemporalHistogram struct {
	LastHour  int `json:"lastHour"`
	Last24h   int `json:"last24h"`
	Last7d    int `json:"last7d"`
	Older     int `json:"older"`
}

// SimilarityStats accompanies every FindSimilar response.
type SimilarityStats struct {
	Total               int                    `json:"total"`
	AvgScore            float64                `json:"avgScore"`
	PriceImpact         *PriceImpactBreakdown  `json:"priceImpact,omitempty"`
	SentimentPositive   int                    `json:"sentimentPositive"`
	SentimentNegative   int                    `json:"sentimentNegative"`
	SentimentNeutral    int                    `json:"sentimentNeutral"`
	Temporal            TemporalHistogram      `json:"temporal"`
}

// SimilarityResult is the full FindSimilar response.
type SimilarityResult struct {
	Items []RankedItem    `json:"items"`
	Stats SimilarityStats `json:"stats"`
}
