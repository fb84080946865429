package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// indexJob is one unit of asynchronous embed-and-upsert work.
type indexJob struct {
	content  string
	meta     IndexMetadata
	pendingID string
}

// Engine is the vector memory store. It generalizes a semantic cache's
// namespace map and cosine-similarity lookup from "prompt to response"
// to "content to MemoryItem", and adds an asynchronous indexing path so
// producers never block on an embedding call.
type Engine struct {
	mu    sync.RWMutex
	items map[string]*MemoryItem // id -> item
	exact map[string]string      // content hash -> canonical id

	embedder       EmbeddingProvider
	dedupThreshold float64
	logger         zerolog.Logger

	intake  chan indexJob
	workers int
	batch   int

	outcomesMu sync.Mutex
	outcomes   map[string]IndexOutcome

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithWorkers overrides the default worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBatchSize overrides the default batch size (10). The batch size
// only scales the intake queue's capacity (batch × workers × 20); each
// worker still takes jobs from the queue one at a time.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batch = n
		}
	}
}

// WithDedupThreshold overrides the default 0.99 cosine dedup threshold.
func WithDedupThreshold(t float64) Option {
	return func(e *Engine) {
		e.dedupThreshold = t
	}
}

// NewEngine constructs a memory Engine backed by embedder.
func NewEngine(embedder EmbeddingProvider, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		items:          make(map[string]*MemoryItem),
		exact:          make(map[string]string),
		embedder:       embedder,
		dedupThreshold: 0.99,
		logger:         logger.With().Str("component", "memory").Logger(),
		workers:        3,
		batch:          10,
		outcomes:       make(map[string]IndexOutcome),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.intake = make(chan indexJob, e.batch*e.workers*20)
	return e
}

// Start launches the background worker pool. Call once at process
// startup; Stop drains and halts it at shutdown.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.runWorker(ctx)
	}
}

// Stop signals all workers to drain their in-flight job and exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()
}

func (e *Engine) runWorker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case job := <-e.intake:
			e.process(ctx, job)
		}
	}
}

// Index enqueues content for asynchronous embedding and upsert. It
// returns an immediate accepted receipt; the caller should poll Outcome
// with the returned PendingID for the final dedup result.
func (e *Engine) Index(content string, meta IndexMetadata) IndexReceipt {
	pendingID := uuid.NewString()
	job := indexJob{content: content, meta: meta, pendingID: pendingID}

	select {
	case e.intake <- job:
	default:
		// Intake is saturated; spawn a dedicated sender so the caller
		// never blocks on a full channel.
		go func() { e.intake <- job }()
	}
	return IndexReceipt{Accepted: true, PendingID: pendingID}
}

// Outcome returns the eventual result of a prior Index call, if it has
// completed yet.
func (e *Engine) Outcome(pendingID string) (IndexOutcome, bool) {
	e.outcomesMu.Lock()
	defer e.outcomesMu.Unlock()
	o, ok := e.outcomes[pendingID]
	return o, ok
}

func (e *Engine) process(ctx context.Context, job indexJob) {
	hash := hashContent(job.content)

	e.mu.RLock()
	if canonicalID, exists := e.exact[hash]; exists {
		e.mu.RUnlock()
		e.recordOutcome(job.pendingID, IndexOutcome{ID: canonicalID, IsDuplicate: true, CanonicalID: canonicalID})
		return
	}
	e.mu.RUnlock()

	vector, err := e.embedder.Embed(ctx, job.content)
	if err != nil {
		e.logger.Error().Err(err).Msg("embedding failed, dropping index job")
		e.recordOutcome(job.pendingID, IndexOutcome{Err: err})
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check exact index under the write lock in case a concurrent
	// job already landed the canonical entry for this hash.
	if canonicalID, exists := e.exact[hash]; exists {
		e.recordOutcome(job.pendingID, IndexOutcome{ID: canonicalID, IsDuplicate: true, CanonicalID: canonicalID})
		return
	}

	if canonicalID, score := e.nearestLocked(vector); canonicalID != "" && score >= e.dedupThreshold {
		dup := &MemoryItem{
			ID:             uuid.NewString(),
			ContentHash:    hash,
			Content:        job.content,
			Source:         job.meta.Source,
			Tickers:        job.meta.Tickers,
			ContentTime:    job.meta.ContentTime,
			IngestTime:     time.Now().UTC(),
			Sentiment:      job.meta.Sentiment,
			SentimentScore: job.meta.SentimentScore,
			EmbeddingModel: e.embedder.Name(),
			IsDuplicate:    true,
			CanonicalID:    canonicalID,
		}
		e.items[dup.ID] = dup
		e.recordOutcome(job.pendingID, IndexOutcome{ID: dup.ID, IsDuplicate: true, CanonicalID: canonicalID})
		return
	}

	item := &MemoryItem{
		ID:             uuid.NewString(),
		Vector:         vector,
		ContentHash:    hash,
		Content:        job.content,
		Source:         job.meta.Source,
		Tickers:        job.meta.Tickers,
		ContentTime:    job.meta.ContentTime,
		IngestTime:     time.Now().UTC(),
		Sentiment:      job.meta.Sentiment,
		SentimentScore: job.meta.SentimentScore,
		EmbeddingModel: e.embedder.Name(),
	}
	e.items[item.ID] = item
	e.exact[hash] = item.ID
	e.recordOutcome(job.pendingID, IndexOutcome{ID: item.ID, IsDuplicate: false})
}

func (e *Engine) recordOutcome(pendingID string, o IndexOutcome) {
	e.outcomesMu.Lock()
	e.outcomes[pendingID] = o
	e.outcomesMu.Unlock()
}

// nearestLocked returns the closest item's id and score under an
// already-held lock. Callers must hold e.mu.
func (e *Engine) nearestLocked(vector []float64) (string, float64) {
	var bestID string
	var bestScore float64 = -1
	for id, item := range e.items {
		if item.IsDuplicate || item.Vector == nil {
			continue
		}
		score := cosineSimilarity(vector, item.Vector)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}
	return bestID, bestScore
}

// LabelOutcome attaches a realized market outcome to a previously
// indexed item, used to build the price-impact breakdown in later
// similarity searches.
func (e *Engine) LabelOutcome(id string, outcome MarketOutcome) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[id]
	if !ok {
		return false
	}
	item.Outcome = &outcome
	item.Labeled = true
	return true
}

// FindSimilar embeds the query text and returns ranked neighbors plus
// aggregate statistics over the result set.
func (e *Engine) FindSimilar(ctx context.Context, q SimilarityQuery) (SimilarityResult, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return SimilarityResult{}, err
	}

	e.mu.RLock()
	candidates := make([]RankedItem, 0, len(e.items))
	for _, item := range e.items {
		if item.IsDuplicate || item.Vector == nil {
			continue
		}
		if !matchesFilter(item, q.Filter) {
			continue
		}
		score := cosineSimilarity(vector, item.Vector)
		if score < q.MinScore {
			continue
		}
		candidates = append(candidates, RankedItem{Item: *item, Score: score})
	}
	e.mu.RUnlock()

	sortRankedDesc(candidates)
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	return SimilarityResult{Items: candidates, Stats: computeStats(candidates)}, nil
}

func matchesFilter(item *MemoryItem, f *SimilarityFilter) bool {
	if f == nil {
		return true
	}
	if f.Source != "" && item.Source != f.Source {
		return false
	}
	if len(f.Tickers) > 0 {
		found := false
		for _, want := range f.Tickers {
			for _, have := range item.Tickers {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortRankedDesc(items []RankedItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Score > items[j-1].Score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func computeStats(items []RankedItem) SimilarityStats {
	stats := SimilarityStats{Total: len(items)}
	if len(items) == 0 {
		return stats
	}

	now := time.Now().UTC()
	var scoreSum float64
	var labeled int
	var impact PriceImpactBreakdown
	var impactSum, timeToImpactSum float64

	for _, r := range items {
		scoreSum += r.Score

		if r.Item.SentimentScore > 0 {
			stats.SentimentPositive++
		} else if r.Item.SentimentScore < 0 {
			stats.SentimentNegative++
		} else {
			stats.SentimentNeutral++
		}

		switch age := now.Sub(r.Item.IngestTime); {
		case age <= time.Hour:
			stats.Temporal.LastHour++
		case age <= 24*time.Hour:
			stats.Temporal.Last24h++
		case age <= 7*24*time.Hour:
			stats.Temporal.Last7d++
		default:
			stats.Temporal.Older++
		}

		if r.Item.Labeled && r.Item.Outcome != nil {
			labeled++
			impactSum += r.Item.Outcome.ImpactPct
			timeToImpactSum += float64(r.Item.Outcome.TimeToImpact.Milliseconds())
			switch r.Item.Outcome.Direction {
			case "up":
				impact.Up++
			case "down":
				impact.Down++
			default:
				impact.Neutral++
			}
		}
	}

	stats.AvgScore = scoreSum / float64(len(items))

	if labeled*2 >= len(items) {
		impact.MeanImpactPct = impactSum / float64(labeled)
		impact.MeanTimeToImpactMs = timeToImpactSum / float64(labeled)
		stats.PriceImpact = &impact
	}

	return stats
}

// cosineSimilarity computes the standard dot-product-over-norms measure
// between two equal-length vectors. Mismatched lengths return 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
