package submission

import (
	"fmt"
	"sync"
	"time"
)

// nonceReservation is a held, not-yet-confirmed nonce for one account.
type nonceReservation struct {
	nonce     uint64
	expiresAt time.Time
}

// NonceManager maintains a per-account monotonic nonce counter and
// reserves nonces with a timeout: an unreleased reservation expires
// and its nonce becomes reusable. Adapted from metering.ReservationStore's
// reserve/settle/refund lifecycle, applied to nonces instead of wallet
// budget holds.
type NonceManager struct {
	mu           sync.Mutex
	nextNonce    map[string]uint64
	free         map[string][]uint64                      // account -> reusable nonces, lowest first
	reservations map[string]map[uint64]*nonceReservation   // account -> nonce -> reservation
	timeout      time.Duration
}

// NewNonceManager builds a NonceManager with the given reservation
// timeout (nonces unconfirmed past this are released for reuse).
func NewNonceManager(timeout time.Duration) *NonceManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NonceManager{
		nextNonce:    make(map[string]uint64),
		free:         make(map[string][]uint64),
		reservations: make(map[string]map[uint64]*nonceReservation),
		timeout:      timeout,
	}
}

// Reserve atomically allocates a nonce for an account: an expired
// reservation's nonce or a returned-to-pool free nonce is preferred
// over minting a new one.
func (n *NonceManager) Reserve(account string) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	byNonce, ok := n.reservations[account]
	if !ok {
		byNonce = make(map[uint64]*nonceReservation)
		n.reservations[account] = byNonce
	}

	for nonce, res := range byNonce {
		if now.After(res.expiresAt) {
			byNonce[nonce] = &nonceReservation{nonce: nonce, expiresAt: now.Add(n.timeout)}
			return nonce
		}
	}

	if free := n.free[account]; len(free) > 0 {
		nonce := free[0]
		n.free[account] = free[1:]
		byNonce[nonce] = &nonceReservation{nonce: nonce, expiresAt: now.Add(n.timeout)}
		return nonce
	}

	nonce := n.nextNonce[account]
	n.nextNonce[account] = nonce + 1
	byNonce[nonce] = &nonceReservation{nonce: nonce, expiresAt: now.Add(n.timeout)}
	return nonce
}

// Confirm finalizes a reservation on submission success, permanently
// consuming the nonce.
func (n *NonceManager) Confirm(account string, nonce uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	byNonce, ok := n.reservations[account]
	if !ok {
		return fmt.Errorf("no reservations for account %s", account)
	}
	if _, ok := byNonce[nonce]; !ok {
		return fmt.Errorf("nonce %d not reserved for account %s", nonce, account)
	}
	delete(byNonce, nonce)
	return nil
}

// Release returns a nonce to the reusable pool on submission failure.
func (n *NonceManager) Release(account string, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	byNonce, ok := n.reservations[account]
	if !ok {
		return
	}
	if _, ok := byNonce[nonce]; !ok {
		return
	}
	delete(byNonce, nonce)
	n.free[account] = append(n.free[account], nonce)
}
