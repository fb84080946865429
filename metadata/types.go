// Package metadata publishes content-addressed JSON descriptors for
// tokens at well-known on-chain milestones: pool-fill thresholds,
// holder-count thresholds, graduation, and status transitions.
package metadata

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MilestoneKind enumerates the triggers that publish a new version.
type MilestoneKind string

const (
	MilestonePoolFill25    MilestoneKind = "pool_fill_25"
	MilestonePoolFill50    MilestoneKind = "pool_fill_50"
	MilestonePoolFill75    MilestoneKind = "pool_fill_75"
	MilestonePoolFill90    MilestoneKind = "pool_fill_90"
	MilestonePoolFill100   MilestoneKind = "pool_fill_100"
	MilestoneHolderCount   MilestoneKind = "holder_count"
	MilestoneGraduation    MilestoneKind = "graduation"
	MilestoneStatusChanged MilestoneKind = "status_changed"
)

// PinResult is one provider's outcome from a multi-pin fan-out.
type PinResult struct {
	ProviderID string `json:"providerId"`
	Success    bool   `json:"success"`
	LatencyMs  int64  `json:"latencyMs"`
	Err        string `json:"error,omitempty"`
}

// Descriptor is the canonical body of a token metadata version, minus
// its integrity field.
type Descriptor struct {
	Token           common.Address         `json:"token"`
	ChainID         int64                  `json:"chainId"`
	Name            string                 `json:"name"`
	Symbol          string                 `json:"symbol"`
	BondingProgress float64                `json:"bondingProgressPct"`
	HolderCount     int                    `json:"holderCount"`
	Status          string                 `json:"status"`
	Milestone       MilestoneKind          `json:"milestone"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
}

// TokenMetadataVersion is one published, content-addressed descriptor.
type TokenMetadataVersion struct {
	Version          int           `json:"version"`
	CID              string        `json:"cid"`
	Body             Descriptor    `json:"body"`
	IntegrityHash    string        `json:"integrityHash"`
	PatchAgainstPrev []PatchOp     `json:"patchAgainstPrev,omitempty"`
	Milestone        MilestoneKind `json:"milestone"`
	PinResults       []PinResult   `json:"pinResults"`
	PublishedAt      time.Time     `json:"publishedAt"`
}

// PatchOp is one RFC-6902 JSON Patch operation.
type PatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// RateLimitConfig bounds how often a token may publish new versions.
type RateLimitConfig struct {
	MaxPerWindow time.Duration // default: 1 update per 5 minutes
	MaxPerHour   int           // default: 10 per hour
}

// DefaultRateLimitConfig returns §4.10's stated defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxPerWindow: 5 * time.Minute, MaxPerHour: 10}
}
