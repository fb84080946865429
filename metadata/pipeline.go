package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// MetadataValidationError is raised when a descriptor build fails a
// structural or semantic check before publication.
type MetadataValidationError struct {
	Reason string
}

func (e *MetadataValidationError) Error() string {
	return fmt.Sprintf("metadata validation failed: %s", e.Reason)
}

func (e *MetadataValidationError) Code() string { return "metadata_validation_failed" }

// tokenKey identifies one (token, chain) pair.
type tokenKey struct {
	token common.Address
	chain int64
}

// publishHistory tracks fired milestones and rate-limit bookkeeping
// for one token.
type publishHistory struct {
	fired       map[MilestoneKind]bool
	lastVersion *TokenMetadataVersion
	windowStart time.Time
	inWindow    int
	hourStart   time.Time
	inHour      int
}

// Pipeline builds, pins, and versions token metadata descriptors in
// response to on-chain milestones, enforcing per-token rate limits and
// once-only milestone firing.
type Pipeline struct {
	mu       sync.Mutex
	history  map[tokenKey]*publishHistory
	versions map[tokenKey][]TokenMetadataVersion

	pinner    *MultiPin
	rateLimit RateLimitConfig
	logger    zerolog.Logger
}

// NewPipeline builds a metadata Pipeline.
func NewPipeline(pinner *MultiPin, rateLimit RateLimitConfig, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		history:   make(map[tokenKey]*publishHistory),
		versions:  make(map[tokenKey][]TokenMetadataVersion),
		pinner:    pinner,
		rateLimit: rateLimit,
		logger:    logger.With().Str("component", "metadata-pipeline").Logger(),
	}
}

// Trigger fires a milestone for (token, chain), building and
// publishing a new TokenMetadataVersion unless the milestone already
// fired for this token or the token is currently rate-limited.
func (p *Pipeline) Trigger(ctx context.Context, milestone MilestoneKind, body Descriptor, now time.Time) (*TokenMetadataVersion, error) {
	key := tokenKey{token: body.Token, chain: body.ChainID}

	p.mu.Lock()
	h, ok := p.history[key]
	if !ok {
		h = &publishHistory{fired: make(map[MilestoneKind]bool)}
		p.history[key] = h
	}
	if h.fired[milestone] {
		p.mu.Unlock()
		return nil, nil
	}
	if !p.allowedLocked(h, now) {
		p.mu.Unlock()
		return nil, &MetadataValidationError{Reason: "rate limit exceeded for token"}
	}
	prev := h.lastVersion
	p.mu.Unlock()

	body.Milestone = milestone
	integrity, err := IntegrityHash(body)
	if err != nil {
		return nil, err
	}
	cid := ContentID(integrity)

	canonical, err := CanonicalJSON(body)
	if err != nil {
		return nil, err
	}

	var results []PinResult
	success := true
	if p.pinner != nil {
		results, success = p.pinner.Pin(ctx, cid, canonical)
		if !success {
			return nil, &MetadataValidationError{Reason: "multi-pin did not reach minimum success count"}
		}
	}

	version := TokenMetadataVersion{
		Version:       1,
		CID:           cid,
		Body:          body,
		IntegrityHash: integrity,
		Milestone:     milestone,
		PinResults:    results,
		PublishedAt:   now,
	}
	if prev != nil {
		version.Version = prev.Version + 1
		patch, err := DiffPatch(prev.Body, body)
		if err != nil {
			return nil, err
		}
		version.PatchAgainstPrev = patch
	}

	p.mu.Lock()
	h.fired[milestone] = true
	h.lastVersion = &version
	p.recordPublishLocked(h, now)
	p.versions[key] = append(p.versions[key], version)
	p.mu.Unlock()

	p.logger.Info().
		Str("token", body.Token.Hex()).
		Int("version", version.Version).
		Str("milestone", string(milestone)).
		Msg("token metadata version published")

	return &version, nil
}

// allowedLocked checks the dual rate limit (per-window, per-hour).
// Caller must hold p.mu.
func (p *Pipeline) allowedLocked(h *publishHistory, now time.Time) bool {
	if !h.windowStart.IsZero() && now.Sub(h.windowStart) < p.rateLimit.MaxPerWindow && h.inWindow > 0 {
		return false
	}
	if !h.hourStart.IsZero() && now.Sub(h.hourStart) < time.Hour && h.inHour >= p.rateLimit.MaxPerHour {
		return false
	}
	return true
}

func (p *Pipeline) recordPublishLocked(h *publishHistory, now time.Time) {
	if h.windowStart.IsZero() || now.Sub(h.windowStart) >= p.rateLimit.MaxPerWindow {
		h.windowStart = now
		h.inWindow = 0
	}
	h.inWindow++

	if h.hourStart.IsZero() || now.Sub(h.hourStart) >= time.Hour {
		h.hourStart = now
		h.inHour = 0
	}
	h.inHour++
}

// Versions returns every published version for (token, chain), oldest
// first.
func (p *Pipeline) Versions(token common.Address, chainID int64) []TokenMetadataVersion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TokenMetadataVersion(nil), p.versions[tokenKey{token: token, chain: chainID}]...)
}
