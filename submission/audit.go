package submission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditSink receives batches of audit entries for durable storage.
type AuditSink interface {
	WriteAuditEntries(ctx context.Context, entries []SubmissionAuditEntry) error
}

// AuditPipeline batches SubmissionAuditEntry writes to a configured
// flush interval and on shutdown, following analytics.Pipeline's
// buffered-channel-plus-ticker worker shape.
type AuditPipeline struct {
	logger zerolog.Logger
	sink   AuditSink

	bufferSize    int
	batchSize     int
	flushInterval time.Duration

	entries chan SubmissionAuditEntry
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu      sync.Mutex
	written int64
	dropped int64
}

// NewAuditPipeline builds an AuditPipeline with a 5s default flush
// interval, matching spec §4.9.
func NewAuditPipeline(sink AuditSink, logger zerolog.Logger) *AuditPipeline {
	return &AuditPipeline{
		logger:        logger.With().Str("component", "submission-audit").Logger(),
		sink:          sink,
		bufferSize:    10000,
		batchSize:     200,
		flushInterval: 5 * time.Second,
		entries:       make(chan SubmissionAuditEntry, 10000),
	}
}

// Start launches the flush worker.
func (p *AuditPipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.worker(ctx)
}

// Stop drains the pipeline, flushing any remaining entries.
func (p *AuditPipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Record submits an entry non-blocking; the entry is dropped (and
// counted) if the buffer is full rather than blocking the submission
// hot path.
func (p *AuditPipeline) Record(entry SubmissionAuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	select {
	case p.entries <- entry:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Warn().Str("entry_id", entry.EntryID).Msg("audit entry dropped: buffer full")
	}
}

func (p *AuditPipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]SubmissionAuditEntry, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.sink.WriteAuditEntries(ctx, batch); err != nil {
			p.logger.Error().Err(err).Int("count", len(batch)).Msg("audit flush failed")
		} else {
			p.mu.Lock()
			p.written += int64(len(batch))
			p.mu.Unlock()
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case entry := <-p.entries:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		case entry := <-p.entries:
			batch = append(batch, entry)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Stats returns written/dropped counters for /metrics.
func (p *AuditPipeline) Stats() (written, dropped int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written, p.dropped
}
