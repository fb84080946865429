package metadata

import (
	"context"
	"sync"
	"time"
)

// PinProvider pins a CID's content to one storage backend (IPFS node,
// pinning service, etc).
type PinProvider interface {
	ID() string
	Pin(ctx context.Context, cid string, body []byte) error
}

// MultiPin fans a pin request out to every configured provider in
// parallel and aggregates success once at least minSuccess providers
// confirm, following provider.ConnectionPool's per-provider client
// management generalized to a fan-out rather than a pick-one pool.
type MultiPin struct {
	providers  []PinProvider
	minSuccess int
}

// NewMultiPin builds a MultiPin requiring at least minSuccess (default
// 1, per §4.10) successful pins to consider the overall pin a success.
func NewMultiPin(providers []PinProvider, minSuccess int) *MultiPin {
	if minSuccess <= 0 {
		minSuccess = 1
	}
	return &MultiPin{providers: providers, minSuccess: minSuccess}
}

// Pin fans out to every provider and returns per-provider results plus
// an aggregated success flag.
func (m *MultiPin) Pin(ctx context.Context, cid string, body []byte) (results []PinResult, success bool) {
	results = make([]PinResult, len(m.providers))
	var wg sync.WaitGroup
	for i, p := range m.providers {
		wg.Add(1)
		go func(i int, p PinProvider) {
			defer wg.Done()
			start := time.Now()
			err := p.Pin(ctx, cid, body)
			results[i] = PinResult{
				ProviderID: p.ID(),
				Success:    err == nil,
				LatencyMs:  time.Since(start).Milliseconds(),
			}
			if err != nil {
				results[i].Err = err.Error()
			}
		}(i, p)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	return results, succeeded >= m.minSuccess
}
