package nadfun

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/launchsentinel/core/orchestrator"
	"github.com/launchsentinel/core/simulate"
	"github.com/launchsentinel/core/submission"
)

// Source adapts a Client into orchestrator.CandidateSource, turning
// the trending and new-token feeds into RunRequests the periodic
// sweep evaluates. It carries the session and policy every discovered
// candidate should run under, since nad-fun's feeds describe
// opportunities, not execution authority.
type Source struct {
	client        *Client
	sessionID     string
	account       string
	chainID       int64
	selector      [4]byte
	policy        submission.Policy
	trendingLimit int
	newTokenLimit int
	defaultBuyWei int64
}

// SourceConfig configures a Source.
type SourceConfig struct {
	SessionID     string
	Account       string
	ChainID       int64
	Selector      [4]byte
	Policy        submission.Policy
	TrendingLimit int
	NewTokenLimit int
	DefaultBuyWei int64
}

func NewSource(client *Client, cfg SourceConfig) *Source {
	trendingLimit := cfg.TrendingLimit
	if trendingLimit <= 0 {
		trendingLimit = 10
	}
	newTokenLimit := cfg.NewTokenLimit
	if newTokenLimit <= 0 {
		newTokenLimit = 10
	}
	return &Source{
		client:        client,
		sessionID:     cfg.SessionID,
		account:       cfg.Account,
		chainID:       cfg.ChainID,
		selector:      cfg.Selector,
		policy:        cfg.Policy,
		trendingLimit: trendingLimit,
		newTokenLimit: newTokenLimit,
		defaultBuyWei: cfg.DefaultBuyWei,
	}
}

// Discover polls nad-fun's trending and new-token feeds and returns
// one RunRequest per distinct token, deduplicated by address.
func (s *Source) Discover(ctx context.Context) ([]orchestrator.RunRequest, error) {
	seen := make(map[string]bool)
	var requests []orchestrator.RunRequest

	trending, err := s.client.Trending(ctx, s.trendingLimit)
	if err != nil {
		return nil, fmt.Errorf("nadfun: trending: %w", err)
	}
	for _, entry := range trending {
		if seen[entry.Token.Address] {
			continue
		}
		seen[entry.Token.Address] = true
		requests = append(requests, s.toRunRequest(entry.Token, fmt.Sprintf("trending rank %d, 1h change %.2f%%", entry.Rank, entry.Change1hPct)))
	}

	newTokens, err := s.client.NewTokens(ctx, s.newTokenLimit)
	if err != nil {
		return nil, fmt.Errorf("nadfun: new tokens: %w", err)
	}
	for _, entry := range newTokens {
		if seen[entry.Token.Address] {
			continue
		}
		seen[entry.Token.Address] = true
		requests = append(requests, s.toRunRequest(entry.Token, fmt.Sprintf("newly launched at block %d", entry.LaunchBlock)))
	}

	return requests, nil
}

func (s *Source) toRunRequest(token Token, query string) orchestrator.RunRequest {
	bundleID := uuid.New().String()
	return orchestrator.RunRequest{
		Query:     query,
		Token:     common.HexToAddress(token.Address),
		ChainID:   s.chainID,
		SessionID: s.sessionID,
		Selector:  s.selector,
		Account:   s.account,
		To:        token.Address,
		ValueWei:  s.defaultBuyWei,
		Policy:    s.policy,
		Bundle: simulate.AtomicBundle{
			ID: bundleID,
			Steps: []simulate.BundleStep{{
				Target:   common.HexToAddress(token.Address),
				Selector: s.selector,
				ValueWei: s.defaultBuyWei,
			}},
			SessionID: s.sessionID,
		},
	}
}
