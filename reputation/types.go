// Package reputation credits users for oracle-verified actions,
// maintains a tiered multiplier on top of a reputation score, and
// applies a penalty table for rejected or fraudulent submissions.
// Crediting is synchronous: CreditAction verifies and credits within
// the call and queues no background work.
package reputation

import "time"

// ActionKind classifies the verified action being rewarded.
type ActionKind string

const (
	ActionSubmission  ActionKind = "submission"
	ActionReferral    ActionKind = "referral"
	ActionDataQuality ActionKind = "data_quality"
	ActionGovernance  ActionKind = "governance"
)

// OracleVerdict is what a verification oracle returns for one action.
type OracleVerdict struct {
	Verified     bool    `json:"verified"`
	Confidence   float64 `json:"confidence"`
	EvidenceHash string  `json:"evidenceHash"`
}

// Tier is one step of the reputation-score step function.
type Tier struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	MinScore   float64 `json:"minScore"`
	Multiplier float64 `json:"multiplier"`
}

// defaultTiers is the step function over reputation score, grounded on
// metering.CostEngine's pricing-table lookup shape applied to
// reputation bands instead of model prices.
var defaultTiers = []Tier{
	{Index: 0, Name: "novice", MinScore: 0, Multiplier: 1.0},
	{Index: 1, Name: "contributor", MinScore: 25, Multiplier: 1.25},
	{Index: 2, Name: "trusted", MinScore: 50, Multiplier: 1.5},
	{Index: 3, Name: "veteran", MinScore: 75, Multiplier: 2.0},
	{Index: 4, Name: "elite", MinScore: 90, Multiplier: 3.0},
}

// PenaltyReason classifies why a penalty was applied.
type PenaltyReason string

const (
	PenaltyRejected  PenaltyReason = "rejected"
	PenaltyFraud     PenaltyReason = "fraud"
	PenaltyDuplicate PenaltyReason = "duplicate"
)

// PenaltyRule is one row of the documented penalty table.
type PenaltyRule struct {
	Reason              PenaltyReason
	PointDeduction      float64
	ReputationDeduction float64
	SuspensionDuration  time.Duration // zero means no suspension
}

// defaultPenalties is the documented penalty table from §4.11.
var defaultPenalties = map[PenaltyReason]PenaltyRule{
	PenaltyRejected:  {Reason: PenaltyRejected, PointDeduction: 5, ReputationDeduction: 1, SuspensionDuration: 0},
	PenaltyDuplicate: {Reason: PenaltyDuplicate, PointDeduction: 10, ReputationDeduction: 3, SuspensionDuration: 0},
	PenaltyFraud:     {Reason: PenaltyFraud, PointDeduction: 100, ReputationDeduction: 25, SuspensionDuration: 24 * time.Hour},
}

// ReputationRecord is per-user credit state. TotalActions only grows;
// TotalPoints grows with each credited reward and drops by a penalty's
// point deduction (never below zero). Multiplier is recomputed from
// Tier on every change.
type ReputationRecord struct {
	UserID         string     `json:"userId"`
	TierIndex      int        `json:"tierIndex"`
	Multiplier     float64    `json:"multiplier"`
	TotalPoints    float64    `json:"totalPoints"`
	TotalActions   int        `json:"totalActions"`
	AccuracyRate   float64    `json:"accuracyRate"`
	PenaltyCount   int        `json:"penaltyCount"`
	SuspendedUntil *time.Time `json:"suspendedUntil,omitempty"`
	JoinedAt       time.Time  `json:"joinedAt"`

	verifiedActions  int
	rejectedActions  int
	reputationScore  float64
	penaltyDeduction float64
}

// RewardRecord is one credited action.
type RewardRecord struct {
	UserID        string     `json:"userId"`
	ActionKind    ActionKind `json:"actionKind"`
	BasePoints    float64    `json:"basePoints"`
	Multiplier    float64    `json:"multiplier"`
	AwardedPoints float64    `json:"awardedPoints"`
	EvidenceHash  string     `json:"evidenceHash"`
	AwardedAt     time.Time  `json:"awardedAt"`
}
