// Package sessionkey manages ephemeral signing authorities: budgeted,
// time-boxed, velocity-capped keys constrained to an allowlist of
// target addresses and method selectors, revocable instantly by the
// kill switch.
package sessionkey

import "time"

// Selector is a 4-byte EVM method selector.
type Selector [4]byte

// CreateOptions configures a new session key.
type CreateOptions struct {
	TotalBudgetWei   int64
	VelocityCapWei   int64
	Expiry           time.Time
	AllowedSelectors []Selector
	AllowedTargets   []string
}

// SessionKey is an ephemeral signing authority. Plaintext key material
// never leaves the manager; only PublicMaterial is returned to callers.
type SessionKey struct {
	ID             string
	PublicMaterial []byte
	sealedPrivate  []byte // chacha20poly1305-sealed, manager-internal
	nonceSeal      [24]byte

	TotalBudgetWei   int64
	SpentWei         int64
	VelocityCapWei   int64
	ExpiresAt        time.Time
	CreatedAt        time.Time
	AllowedSelectors map[Selector]bool
	AllowedTargets   map[string]bool

	nonceCounter uint64
	usedNonces   map[uint64]bool

	Revoked       bool
	RevokedReason string

	velocity *velocityRingBuffer
}

// SignedOp is one operation a caller wants to execute under a session.
type SignedOp struct {
	SessionID string
	Selector  Selector
	Target    string
	AmountWei int64
	Nonce     uint64
}

// ValidationResult is returned by Validate.
type ValidationResult struct {
	Valid                bool
	Err                  error
	RemainingBudgetWei   int64
	RemainingVelocityWei int64
	ExpiresInMs          int64
}
