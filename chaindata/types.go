// Package chaindata is the read-only façade over an EVM JSON-RPC
// endpoint and an optional DEX-launchpad REST API: network state, pool
// liquidity, holder analysis, recent transactions, price-impact
// estimation, and bot-activity detection.
package chaindata

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkState is a point-in-time snapshot of chain conditions.
type NetworkState struct {
	ChainID     int64     `json:"chainId"`
	BlockHeight uint64    `json:"blockHeight"`
	GasPriceWei int64     `json:"gasPriceWei"`
	ObservedAt  time.Time `json:"observedAt"`
}

// PoolLiquidity describes one token's pool state.
type PoolLiquidity struct {
	Token               common.Address `json:"token"`
	IsBondingCurve      bool           `json:"isBondingCurve"`
	ReserveBaseWei      int64          `json:"reserveBaseWei"`
	ReserveQuoteWei     int64          `json:"reserveQuoteWei"`
	BondingProgressPct  float64        `json:"bondingProgressPct"`
	HolderCount         int            `json:"holderCount"`
}

// HolderAnalysis summarizes token holder distribution.
type HolderAnalysis struct {
	Token           common.Address `json:"token"`
	HolderCount     int            `json:"holderCount"`
	Top10PctShare   float64        `json:"top10PctShare"`
	CreatorPctShare float64        `json:"creatorPctShare"`
}

// Transaction is one observed on-chain swap, as needed by Bot-Radar and
// by the simulator's history window.
type Transaction struct {
	Hash      common.Hash    `json:"hash"`
	Sender    common.Address `json:"sender"`
	Token     common.Address `json:"token"`
	Direction string         `json:"direction"` // buy | sell
	ValueWei  int64          `json:"valueWei"`
	Timestamp time.Time      `json:"timestamp"`
}

// Call is one entry of a multicall batch read.
type Call struct {
	Target common.Address `json:"target"`
	Data   []byte         `json:"data"`
}

// CallResult is the outcome of one Call.
type CallResult struct {
	Success bool   `json:"success"`
	Data    []byte `json:"data"`
	Err     error  `json:"-"`
}
