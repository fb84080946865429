package sessionkey

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/launchsentinel/core/envguard"
)

const (
	minBudgetWei = 1
	maxValidity  = 24 * time.Hour
)

// Manager holds an in-memory session table. Key material is sealed at
// rest with chacha20poly1305 under a manager-wide sealing key; only
// Create/Rotate ever see plaintext, and only transiently.
type Manager struct {
	guard  *envguard.Guard
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*SessionKey
	locks    *keyedMutex

	sealKey [chacha20poly1305.KeySize]byte
}

// NewManager constructs the session key manager. sealKey must be
// exactly 32 bytes; pass a key derived from a KMS/secret store in
// production.
func NewManager(guard *envguard.Guard, sealKey [32]byte, logger zerolog.Logger) *Manager {
	return &Manager{
		guard:    guard,
		logger:   logger.With().Str("component", "sessionkey").Logger(),
		sessions: make(map[string]*SessionKey),
		locks:    newKeyedMutex(),
		sealKey:  sealKey,
	}
}

// Create validates options and derives a new session key, returning its
// public material and id. Plaintext private material is sealed
// immediately and never returned.
func (m *Manager) Create(opts CreateOptions) (*SessionKey, error) {
	if opts.TotalBudgetWei < minBudgetWei {
		return nil, newSessionError(ErrBudget, "total budget below minimum")
	}
	if opts.Expiry.After(time.Now().Add(maxValidity)) {
		return nil, newSessionError(ErrExpired, "expiry exceeds the 24h maximum validity")
	}

	private := make([]byte, 32)
	if _, err := rand.Read(private); err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}
	public := sha256.Sum256(private)

	sealed, nonce, err := m.seal(private)
	if err != nil {
		return nil, fmt.Errorf("seal key material: %w", err)
	}

	selectors := make(map[Selector]bool, len(opts.AllowedSelectors))
	for _, s := range opts.AllowedSelectors {
		selectors[s] = true
	}
	targets := make(map[string]bool, len(opts.AllowedTargets))
	for _, t := range opts.AllowedTargets {
		targets[t] = true
	}

	key := &SessionKey{
		ID:               uuid.NewString(),
		PublicMaterial:   public[:],
		sealedPrivate:    sealed,
		nonceSeal:        nonce,
		TotalBudgetWei:   opts.TotalBudgetWei,
		VelocityCapWei:   opts.VelocityCapWei,
		ExpiresAt:        opts.Expiry,
		CreatedAt:        time.Now().UTC(),
		AllowedSelectors: selectors,
		AllowedTargets:   targets,
		usedNonces:       make(map[uint64]bool),
		velocity:         newVelocityRingBuffer(60 * time.Second),
	}

	m.mu.Lock()
	m.sessions[key.ID] = key
	m.mu.Unlock()

	m.logger.Info().Str("session_id", key.ID).Msg("session key created")
	return key, nil
}

// Validate checks every invariant in spec §4.7 without mutating state.
func (m *Manager) Validate(op SignedOp) ValidationResult {
	unlock := m.locks.lock(op.SessionID)
	defer unlock()

	if m.guard.KillSwitchActive() {
		return ValidationResult{Valid: false, Err: newSessionError(ErrKillSwitch, "kill switch active")}
	}

	key, ok := m.getLocked(op.SessionID)
	if !ok {
		return ValidationResult{Valid: false, Err: newSessionError(ErrNotFound, "session not found")}
	}
	if key.Revoked {
		return ValidationResult{Valid: false, Err: newSessionError(ErrRevoked, key.RevokedReason)}
	}

	now := time.Now().UTC()
	if now.After(key.ExpiresAt) {
		return ValidationResult{Valid: false, Err: newSessionError(ErrExpired, "session expired")}
	}
	if !key.AllowedSelectors[op.Selector] {
		return ValidationResult{Valid: false, Err: newSessionError(ErrMethod, "method selector not allowed")}
	}
	if !key.AllowedTargets[op.Target] {
		return ValidationResult{Valid: false, Err: newSessionError(ErrTarget, "target address not allowed")}
	}
	if key.usedNonces[op.Nonce] {
		return ValidationResult{Valid: false, Err: newSessionError(ErrNonce, "nonce already used")}
	}
	if key.SpentWei+op.AmountWei > key.TotalBudgetWei {
		return ValidationResult{Valid: false, Err: newSessionError(ErrBudget, "operation would exceed total budget")}
	}

	velocitySum := key.velocity.sum(now)
	if velocitySum+op.AmountWei > key.VelocityCapWei {
		return ValidationResult{Valid: false, Err: newSessionError(ErrVelocity, "operation would exceed velocity cap")}
	}

	return ValidationResult{
		Valid:                true,
		RemainingBudgetWei:   key.TotalBudgetWei - key.SpentWei - op.AmountWei,
		RemainingVelocityWei: key.VelocityCapWei - velocitySum - op.AmountWei,
		ExpiresInMs:          key.ExpiresAt.Sub(now).Milliseconds(),
	}
}

// Record atomically applies a successful operation: increments spent,
// marks the nonce used, and records velocity. Call only after Validate
// returned Valid=true for the same op; Rollback undoes it if a
// downstream step fails.
func (m *Manager) Record(op SignedOp) error {
	unlock := m.locks.lock(op.SessionID)
	defer unlock()

	key, ok := m.getLocked(op.SessionID)
	if !ok {
		return newSessionError(ErrNotFound, "session not found")
	}

	now := time.Now().UTC()
	key.SpentWei += op.AmountWei
	key.usedNonces[op.Nonce] = true
	key.nonceCounter++
	key.velocity.record(now, op.AmountWei)
	return nil
}

// Rollback undoes a Record call after a downstream failure (e.g. the
// simulated bundle reverted after the nonce was marked spent).
func (m *Manager) Rollback(op SignedOp) error {
	unlock := m.locks.lock(op.SessionID)
	defer unlock()

	key, ok := m.getLocked(op.SessionID)
	if !ok {
		return newSessionError(ErrNotFound, "session not found")
	}
	key.SpentWei -= op.AmountWei
	if key.SpentWei < 0 {
		key.SpentWei = 0
	}
	delete(key.usedNonces, op.Nonce)

	v := key.velocity
	v.mu.Lock()
	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].amount == op.AmountWei {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			break
		}
	}
	v.mu.Unlock()
	return nil
}

// Revoke terminally disables a session.
func (m *Manager) Revoke(id, reason string) error {
	unlock := m.locks.lock(id)
	defer unlock()

	key, ok := m.getLocked(id)
	if !ok {
		return newSessionError(ErrNotFound, "session not found")
	}
	key.Revoked = true
	key.RevokedReason = reason
	m.logger.Warn().Str("session_id", id).Str("reason", reason).Msg("session key revoked")
	return nil
}

// Rotate creates a successor carrying the remaining budget and
// remaining validity, then revokes the predecessor.
func (m *Manager) Rotate(id string) (*SessionKey, error) {
	unlock := m.locks.lock(id)
	predecessor, ok := m.getLocked(id)
	if !ok {
		unlock()
		return nil, newSessionError(ErrNotFound, "session not found")
	}
	if predecessor.Revoked {
		unlock()
		return nil, newSessionError(ErrRevoked, predecessor.RevokedReason)
	}

	remainingBudget := predecessor.TotalBudgetWei - predecessor.SpentWei
	remainingExpiry := predecessor.ExpiresAt
	selectors := make([]Selector, 0, len(predecessor.AllowedSelectors))
	for s := range predecessor.AllowedSelectors {
		selectors = append(selectors, s)
	}
	targets := make([]string, 0, len(predecessor.AllowedTargets))
	for t := range predecessor.AllowedTargets {
		targets = append(targets, t)
	}
	velocityCap := predecessor.VelocityCapWei
	unlock()

	successor, err := m.Create(CreateOptions{
		TotalBudgetWei:   remainingBudget,
		VelocityCapWei:   velocityCap,
		Expiry:           remainingExpiry,
		AllowedSelectors: selectors,
		AllowedTargets:   targets,
	})
	if err != nil {
		return nil, err
	}

	if err := m.Revoke(id, "rotated to "+successor.ID); err != nil {
		return nil, err
	}
	return successor, nil
}

// KillSwitchRevokeAll revokes every non-revoked session, called when
// the environment guard's kill switch engages.
func (m *Manager) KillSwitchRevokeAll(reason string) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id, key := range m.sessions {
		if !key.Revoked {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Revoke(id, reason)
	}
	return len(ids)
}

func (m *Manager) getLocked(id string) (*SessionKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.sessions[id]
	return key, ok
}

func (m *Manager) seal(plaintext []byte) ([]byte, [24]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nonce, err
	}
	aead, err := chacha20poly1305.NewX(m.sealKey[:])
	if err != nil {
		return nil, nonce, err
	}
	sealed := aead.Seal(nil, nonce[:], plaintext, nil)
	return sealed, nonce, nil
}
