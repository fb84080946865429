package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Ledger is the per-user reputation and reward store. Every mutation
// recomputes the reputation score and re-derives tier/multiplier, so
// TierIndex and Multiplier are never stale relative to the score.
type Ledger struct {
	mu        sync.Mutex
	records   map[string]*ReputationRecord
	tiers     []Tier
	penalties map[PenaltyReason]PenaltyRule
	oracle    *OracleRegistry
	logger    zerolog.Logger
}

// NewLedger builds a Ledger with the default tier ladder and penalty
// table.
func NewLedger(oracle *OracleRegistry, logger zerolog.Logger) *Ledger {
	return &Ledger{
		records:   make(map[string]*ReputationRecord),
		tiers:     defaultTiers,
		penalties: defaultPenalties,
		oracle:    oracle,
		logger:    logger.With().Str("component", "reputation-ledger").Logger(),
	}
}

func (l *Ledger) getOrCreateLocked(userID string, now time.Time) *ReputationRecord {
	r, ok := l.records[userID]
	if !ok {
		r = &ReputationRecord{UserID: userID, JoinedAt: now, TierIndex: 0, Multiplier: defaultTiers[0].Multiplier}
		l.records[userID] = r
	}
	return r
}

// CreditAction verifies evidence through the oracle registry and, on
// a verified result, appends a RewardRecord worth
// basePoints × tierMultiplier. A non-verified result is treated as a
// rejected submission and penalized.
func (l *Ledger) CreditAction(ctx context.Context, userID string, kind ActionKind, evidence []byte, basePoints float64, now time.Time) (*RewardRecord, error) {
	verdict, err := l.oracle.Verify(ctx, kind, evidence)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.getOrCreateLocked(userID, now)

	if !verdict.Verified {
		l.applyPenaltyLocked(r, PenaltyRejected, now)
		r.TotalActions++
		r.rejectedActions++
		l.recomputeLocked(r, now)
		return nil, nil
	}

	reward := &RewardRecord{
		UserID:        userID,
		ActionKind:    kind,
		BasePoints:    basePoints,
		Multiplier:    r.Multiplier,
		AwardedPoints: basePoints * r.Multiplier,
		EvidenceHash:  verdict.EvidenceHash,
		AwardedAt:     now,
	}

	r.TotalPoints += reward.AwardedPoints
	r.TotalActions++
	r.verifiedActions++
	l.recomputeLocked(r, now)

	l.logger.Info().Str("user_id", userID).Float64("awarded_points", reward.AwardedPoints).Msg("reward credited")
	return reward, nil
}

// Penalize applies a documented penalty for a rejected or fraudulent
// submission, optionally suspending the user.
func (l *Ledger) Penalize(userID string, reason PenaltyReason, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.getOrCreateLocked(userID, now)
	l.applyPenaltyLocked(r, reason, now)
	l.recomputeLocked(r, now)
	return nil
}

func (l *Ledger) applyPenaltyLocked(r *ReputationRecord, reason PenaltyReason, now time.Time) {
	rule, ok := l.penalties[reason]
	if !ok {
		return
	}
	r.TotalPoints -= rule.PointDeduction
	if r.TotalPoints < 0 {
		r.TotalPoints = 0
	}
	r.penaltyDeduction += rule.ReputationDeduction
	r.PenaltyCount++
	if rule.SuspensionDuration > 0 {
		until := now.Add(rule.SuspensionDuration)
		r.SuspendedUntil = &until
	}
}

// recomputeLocked recomputes accuracy, score, tier, and multiplier
// from the record's current counters. Score is a weighted blend of
// verified actions, accuracy, account age in days, and verification
// rate, penalized per-penalty.
func (l *Ledger) recomputeLocked(r *ReputationRecord, now time.Time) {
	if r.TotalActions > 0 {
		r.AccuracyRate = float64(r.verifiedActions) / float64(r.TotalActions)
	}

	ageDays := 0.0
	if !r.JoinedAt.IsZero() {
		ageDays = now.Sub(r.JoinedAt).Hours() / 24
	}
	verificationRate := r.AccuracyRate

	score := float64(r.verifiedActions)*0.5 +
		r.AccuracyRate*30 +
		clampFloat(ageDays, 0, 30) +
		verificationRate*20 -
		r.penaltyDeduction
	if score < 0 {
		score = 0
	}
	r.reputationScore = score

	tier := l.tiers[0]
	for _, t := range l.tiers {
		if score >= t.MinScore {
			tier = t
		}
	}
	r.TierIndex = tier.Index
	r.Multiplier = tier.Multiplier
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Get returns a copy of the current record for userID.
func (l *Ledger) Get(userID string) (ReputationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[userID]
	if !ok {
		return ReputationRecord{}, false
	}
	return *r, true
}

// IsSuspended reports whether userID is currently under suspension.
func (l *Ledger) IsSuspended(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[userID]
	if !ok || r.SuspendedUntil == nil {
		return false
	}
	return now.Before(*r.SuspendedUntil)
}
