package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// EmbeddingProvider turns content into a fixed-dimension vector.
type EmbeddingProvider interface {
	Name() string
	Embed(ctx context.Context, content string) ([]float64, error)
}

// ResilientEmbedder wraps a primary provider with a circuit breaker and
// falls over to a secondary provider on sustained failure, following the
// status-transition design of a primary/fallback pool with a health
// poller that periodically re-probes the primary and swaps back once it
// recovers.
type ResilientEmbedder struct {
	primary  EmbeddingProvider
	fallback EmbeddingProvider
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger

	mu         sync.RWMutex
	usingFallback bool

	healthInterval time.Duration
	stopHealth     chan struct{}
	healthOnce     sync.Once
}

// NewResilientEmbedder constructs the composite. fallback may be nil, in
// which case embedding failures simply propagate once the breaker opens.
func NewResilientEmbedder(primary, fallback EmbeddingProvider, logger zerolog.Logger) *ResilientEmbedder {
	r := &ResilientEmbedder{
		primary:        primary,
		fallback:       fallback,
		logger:         logger.With().Str("component", "embedding").Logger(),
		healthInterval: 30 * time.Second,
		stopHealth:     make(chan struct{}),
	}
	settings := gobreaker.Settings{
		Name:        "embedding-primary",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("embedding breaker state change")
			r.mu.Lock()
			r.usingFallback = to == gobreaker.StateOpen
			r.mu.Unlock()
		},
	}
	r.breaker = gobreaker.NewCircuitBreaker(settings)
	return r
}

// Name reports the provider currently serving requests.
func (r *ResilientEmbedder) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.usingFallback && r.fallback != nil {
		return r.fallback.Name()
	}
	return r.primary.Name()
}

// Embed tries the primary through the breaker; on an open breaker or a
// failed call it falls through to the fallback provider if configured.
func (r *ResilientEmbedder) Embed(ctx context.Context, content string) ([]float64, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.primary.Embed(ctx, content)
	})
	if err == nil {
		return result.([]float64), nil
	}

	r.logger.Warn().Err(err).Msg("primary embedding provider failed, attempting fallback")
	if r.fallback == nil {
		return nil, fmt.Errorf("embedding failed and no fallback configured: %w", err)
	}
	return r.fallback.Embed(ctx, content)
}

// StartHealthLoop periodically probes the primary provider on a fixed
// interval so a recovered primary is detected even while the breaker
// would otherwise stay half-open waiting for traffic.
func (r *ResilientEmbedder) StartHealthLoop(ctx context.Context) {
	r.healthOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(r.healthInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-r.stopHealth:
					return
				case <-ticker.C:
					probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
					_, err := r.breaker.Execute(func() (interface{}, error) {
						return r.primary.Embed(probeCtx, "health-check")
					})
					cancel()
					if err != nil {
						r.logger.Debug().Err(err).Msg("primary embedding health probe failed")
					}
				}
			}
		}()
	})
}

// Stop terminates the health probe loop.
func (r *ResilientEmbedder) Stop() {
	select {
	case <-r.stopHealth:
	default:
		close(r.stopHealth)
	}
}
