package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Semaphore provides bounded concurrency control per key.
type Semaphore struct {
	mu    sync.Mutex
	semas map[string]chan struct{}
	limit int
}

// NewSemaphore creates a new per-key semaphore with the given concurrency limit.
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		limit = 100
	}
	return &Semaphore{
		semas: make(map[string]chan struct{}),
		limit: limit,
	}
}

// Acquire attempts to acquire a slot for the given key within timeout.
// The caller must call Release when done.
func (s *Semaphore) Acquire(key string, timeout time.Duration) bool {
	s.mu.Lock()
	ch, ok := s.semas[key]
	if !ok {
		ch = make(chan struct{}, s.limit)
		s.semas[key] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Release releases a slot for the given key.
func (s *Semaphore) Release(key string) {
	s.mu.Lock()
	ch, ok := s.semas[key]
	s.mu.Unlock()

	if ok {
		select {
		case <-ch:
		default:
		}
	}
}

// ActiveCount returns the number of active holders for a key.
func (s *Semaphore) ActiveCount(key string) int {
	s.mu.Lock()
	ch, ok := s.semas[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return len(ch)
}

// concurrencyGuardKey is the single bucket the admin surface shares —
// there is one operator credential, not one per tenant, so there is
// nothing to key concurrency on beyond "admin requests in general".
const concurrencyGuardKey = "admin"

// ConcurrencyGuard caps how many admin mutations (mode transitions,
// kill switch, session-key lifecycle) may be in flight at once, so a
// burst of concurrent admin calls can't race each other through the
// guard/session manager's locks.
type ConcurrencyGuard struct {
	semaphore *Semaphore
	logger    zerolog.Logger
	timeout   time.Duration
}

// NewConcurrencyGuard creates a new admin concurrency guard.
func NewConcurrencyGuard(maxConcurrent int, acquireTimeout time.Duration, logger zerolog.Logger) *ConcurrencyGuard {
	return &ConcurrencyGuard{
		semaphore: NewSemaphore(maxConcurrent),
		logger:    logger,
		timeout:   acquireTimeout,
	}
}

// Handler returns an http.Handler middleware that enforces the
// concurrency cap. Once the cap is reached, requests get a 429.
func (cg *ConcurrencyGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cg.semaphore.Acquire(concurrencyGuardKey, cg.timeout) {
			cg.logger.Warn().
				Int("active", cg.semaphore.ActiveCount(concurrencyGuardKey)).
				Msg("admin concurrency limit reached — rejecting request")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":{"type":"rate_limit","message":"too many concurrent admin requests"}}`)
			return
		}
		defer cg.semaphore.Release(concurrencyGuardKey)

		next.ServeHTTP(w, r)
	})
}
