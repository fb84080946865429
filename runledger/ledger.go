package runledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/consensus"
	"github.com/launchsentinel/core/metadata"
)

// errFrozen is returned by any append attempted after a run has been
// frozen.
var errFrozen = fmt.Errorf("run record is frozen")

// Ledger is the append-only store of RunRecords, keyed by run id.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*RunRecord
	order   []string // run ids in creation order, most recent last
	logger  zerolog.Logger
}

// NewLedger builds an empty run-record ledger.
func NewLedger(logger zerolog.Logger) *Ledger {
	return &Ledger{
		records: make(map[string]*RunRecord),
		logger:  logger.With().Str("component", "runledger").Logger(),
	}
}

// CreateRun starts a new run record, computing the input checksum over
// the signal bundle's canonical JSON.
func (l *Ledger) CreateRun(specVersion string, bundle agents.SignalBundle, now time.Time) (*RunRecord, error) {
	canonical, err := metadata.CanonicalJSON(bundle)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)

	record := &RunRecord{
		RunID:         uuid.NewString(),
		SpecVersion:   specVersion,
		SignalBundle:  bundle,
		StartedAt:     now,
		InputChecksum: hex.EncodeToString(sum[:]),
		Status:        StatusRunning,
	}

	l.mu.Lock()
	l.records[record.RunID] = record
	l.order = append(l.order, record.RunID)
	l.mu.Unlock()

	l.appendAudit(record.RunID, "run_created", nil, now)
	return record, nil
}

// AppendOpinion appends one agent opinion in completion order.
func (l *Ledger) AppendOpinion(runID string, opinion consensus.AgentOpinion, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	if record.Status != StatusRunning {
		return errFrozen
	}
	record.Opinions = append(record.Opinions, opinion)
	record.AuditLog = append(record.AuditLog, AuditEvent{
		Timestamp: now,
		Tag:       "opinion_received",
		Details:   map[string]interface{}{"role": opinion.Role},
	})
	return nil
}

// SetDecision records the consensus decision for a still-open run.
func (l *Ledger) SetDecision(runID string, decision consensus.Decision, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	if record.Status != StatusRunning {
		return errFrozen
	}
	record.Decision = &decision
	record.AuditLog = append(record.AuditLog, AuditEvent{
		Timestamp: now,
		Tag:       "decision_set",
		Details:   map[string]interface{}{"status": decision.Status},
	})
	return nil
}

// appendAudit is an internal helper for audit entries not tied to a
// specific public append method.
func (l *Ledger) appendAudit(runID, tag string, details map[string]interface{}, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[runID]
	if !ok {
		return
	}
	record.AuditLog = append(record.AuditLog, AuditEvent{Timestamp: now, Tag: tag, Details: details})
}

// Freeze finalizes a run, setting its end time, status, and content
// hash. No further appends are accepted once frozen.
func (l *Ledger) Freeze(runID string, status Status, now time.Time) (*RunRecord, error) {
	if status != StatusComplete && status != StatusError {
		return nil, fmt.Errorf("invalid terminal status %q", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if record.Status != StatusRunning {
		return record, nil
	}

	record.EndedAt = now
	record.Status = status
	record.AuditLog = append(record.AuditLog, AuditEvent{Timestamp: now, Tag: "run_" + string(status)})

	hash, err := contentHash(record)
	if err != nil {
		return nil, err
	}
	record.ContentHash = hash

	l.logger.Info().Str("run_id", runID).Str("status", string(status)).Msg("run record frozen")
	return record, nil
}

// contentHash computes a stable-key-order JSON digest of the record,
// reusing metadata's canonical-JSON content-addressing helper.
func contentHash(record *RunRecord) (string, error) {
	canonical, err := metadata.CanonicalJSON(record)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Get fetches a run by id.
func (l *Ledger) Get(runID string) (*RunRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[runID]
	return record, ok
}

// ListRecent returns up to limit most-recently-created runs, newest
// first.
func (l *Ledger) ListRecent(limit int) []*RunRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.order) {
		limit = len(l.order)
	}
	out := make([]*RunRecord, 0, limit)
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[l.order[i]])
	}
	return out
}
