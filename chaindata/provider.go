package chaindata

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// EVMClient is the minimal JSON-RPC surface chaindata needs. Satisfied
// in production by an ethclient.Client wrapper; satisfied in tests by a
// fake.
type EVMClient interface {
	BlockHeight(ctx context.Context) (uint64, error)
	GasPriceWei(ctx context.Context) (int64, error)
	PoolLiquidity(ctx context.Context, token common.Address) (PoolLiquidity, error)
	HolderAnalysis(ctx context.Context, token common.Address) (HolderAnalysis, error)
	RecentTransactions(ctx context.Context, token common.Address, n int) ([]Transaction, error)
	Call(ctx context.Context, call Call) CallResult
}

const (
	prefixNetwork  = "network:"
	prefixPool     = "pool:"
	prefixHolders  = "holders:"
	prefixBotRadar = "botradar:"
)

// Provider is the read-only façade described by spec §4.4: cached reads
// over an EVM client with per-prefix TTL, plus the price-impact and
// Bot-Radar subroutines. Cache shape follows caching.Engine's namespace
// map generalized with a prefix-keyed TTL table instead of one global TTL.
type Provider struct {
	client  EVMClient
	chainID int64
	cache   *prefixCache
	logger  zerolog.Logger
}

// NewProvider constructs the façade with the default per-prefix TTLs
// from spec §4.4 (network 2s, pool 5s, holders 30s, bot-radar 10s).
func NewProvider(client EVMClient, chainID int64, logger zerolog.Logger) *Provider {
	cache := newPrefixCache(4096)
	cache.setTTL(prefixNetwork, 2*time.Second)
	cache.setTTL(prefixPool, 5*time.Second)
	cache.setTTL(prefixHolders, 30*time.Second)
	cache.setTTL(prefixBotRadar, 10*time.Second)

	return &Provider{
		client:  client,
		chainID: chainID,
		cache:   cache,
		logger:  logger.With().Str("component", "chaindata").Logger(),
	}
}

// NetworkState returns the current chain snapshot.
func (p *Provider) NetworkState(ctx context.Context) (NetworkState, error) {
	key := prefixNetwork + "state"
	if cached, ok := p.cache.get(key); ok {
		return cached.(NetworkState), nil
	}

	height, err := p.client.BlockHeight(ctx)
	if err != nil {
		return NetworkState{}, fmt.Errorf("block height: %w", err)
	}
	gas, err := p.client.GasPriceWei(ctx)
	if err != nil {
		return NetworkState{}, fmt.Errorf("gas price: %w", err)
	}

	state := NetworkState{
		ChainID:     p.chainID,
		BlockHeight: height,
		GasPriceWei: gas,
		ObservedAt:  time.Now().UTC(),
	}
	p.cache.set(key, state)
	return state, nil
}

// PoolLiquidityFor returns pool state for a token.
func (p *Provider) PoolLiquidityFor(ctx context.Context, token common.Address) (PoolLiquidity, error) {
	key := prefixPool + token.Hex()
	if cached, ok := p.cache.get(key); ok {
		return cached.(PoolLiquidity), nil
	}
	pool, err := p.client.PoolLiquidity(ctx, token)
	if err != nil {
		return PoolLiquidity{}, fmt.Errorf("pool liquidity: %w", err)
	}
	p.cache.set(key, pool)
	return pool, nil
}

// HolderAnalysisFor returns holder distribution for a token.
func (p *Provider) HolderAnalysisFor(ctx context.Context, token common.Address) (HolderAnalysis, error) {
	key := prefixHolders + token.Hex()
	if cached, ok := p.cache.get(key); ok {
		return cached.(HolderAnalysis), nil
	}
	holders, err := p.client.HolderAnalysis(ctx, token)
	if err != nil {
		return HolderAnalysis{}, fmt.Errorf("holder analysis: %w", err)
	}
	p.cache.set(key, holders)
	return holders, nil
}

// RecentTransactionsFor returns the last n observed swaps for a token.
func (p *Provider) RecentTransactionsFor(ctx context.Context, token common.Address, n int) ([]Transaction, error) {
	return p.client.RecentTransactions(ctx, token, n)
}

// BotRadar runs the Bot-Radar subroutine over a token's recent window,
// cached separately from the raw transaction list since the aggregate
// is more expensive to recompute than to serve stale for a few seconds.
func (p *Provider) BotRadar(ctx context.Context, token common.Address, windowTxCount int) (BotRadarResult, error) {
	key := prefixBotRadar + token.Hex()
	if cached, ok := p.cache.get(key); ok {
		return cached.(BotRadarResult), nil
	}
	txs, err := p.RecentTransactionsFor(ctx, token, windowTxCount)
	if err != nil {
		return BotRadarResult{}, fmt.Errorf("recent transactions: %w", err)
	}
	result := DetectBotActivity(txs)
	p.cache.set(key, result)
	return result, nil
}

// Multicall performs a batch of read calls. Partial failures are
// reported per-call rather than failing the whole batch.
func (p *Provider) Multicall(ctx context.Context, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))
	for i, call := range calls {
		results[i] = p.client.Call(ctx, call)
	}
	return results
}

// InvalidatePrefix drops every cached entry for a given data class
// (e.g. after observing a new block, invalidate "network:").
func (p *Provider) InvalidatePrefix(prefix string) {
	p.cache.invalidatePrefix(prefix)
}
