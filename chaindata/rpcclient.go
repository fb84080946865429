package chaindata

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/launchsentinel/core/nadfun"
)

// indexer is the subset of nadfun.Client rpcClient needs for the
// derived data raw JSON-RPC can't answer on its own (pool/holder
// aggregates, trade history) — chaindata reads chain state directly
// over RPC and defers to the indexer only for what an indexer is for.
type indexer interface {
	PoolState(ctx context.Context, token string) (nadfun.PoolState, error)
	Holders(ctx context.Context, token string) (nadfun.HolderBreakdown, error)
	RecentTrades(ctx context.Context, token string, n int) ([]nadfun.TokenTrade, error)
}

// rpcClient implements EVMClient against a live EVM JSON-RPC endpoint,
// backed by an indexer for data that requires aggregating history
// rather than reading current state.
type rpcClient struct {
	eth     *ethclient.Client
	indexer indexer
}

// NewRPCClient dials an EVM JSON-RPC endpoint and pairs it with an
// indexer client for pool/holder/trade aggregates.
func NewRPCClient(rpcURL string, idx indexer) (EVMClient, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chaindata: dial rpc: %w", err)
	}
	return &rpcClient{eth: eth, indexer: idx}, nil
}

func (c *rpcClient) BlockHeight(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *rpcClient) GasPriceWei(ctx context.Context) (int64, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return 0, err
	}
	return price.Int64(), nil
}

func (c *rpcClient) PoolLiquidity(ctx context.Context, token common.Address) (PoolLiquidity, error) {
	state, err := c.indexer.PoolState(ctx, token.Hex())
	if err != nil {
		return PoolLiquidity{}, fmt.Errorf("chaindata: pool state: %w", err)
	}
	return PoolLiquidity{
		Token:              token,
		IsBondingCurve:     state.IsBondingCurve,
		ReserveBaseWei:     state.ReserveBaseWei,
		ReserveQuoteWei:    state.ReserveQuoteWei,
		BondingProgressPct: state.BondingProgressPct,
		HolderCount:        state.HolderCount,
	}, nil
}

func (c *rpcClient) HolderAnalysis(ctx context.Context, token common.Address) (HolderAnalysis, error) {
	breakdown, err := c.indexer.Holders(ctx, token.Hex())
	if err != nil {
		return HolderAnalysis{}, fmt.Errorf("chaindata: holders: %w", err)
	}
	return HolderAnalysis{
		Token:           token,
		HolderCount:     breakdown.HolderCount,
		Top10PctShare:   breakdown.Top10PctShare,
		CreatorPctShare: breakdown.CreatorPctShare,
	}, nil
}

func (c *rpcClient) RecentTransactions(ctx context.Context, token common.Address, n int) ([]Transaction, error) {
	trades, err := c.indexer.RecentTrades(ctx, token.Hex(), n)
	if err != nil {
		return nil, fmt.Errorf("chaindata: recent trades: %w", err)
	}
	out := make([]Transaction, 0, len(trades))
	for _, t := range trades {
		out = append(out, Transaction{
			Hash:      common.HexToHash(t.TxHash),
			Sender:    common.HexToAddress(t.Sender),
			Token:     common.HexToAddress(t.Token),
			Direction: t.Direction,
			ValueWei:  t.ValueWei,
			Timestamp: t.Timestamp,
		})
	}
	return out, nil
}

func (c *rpcClient) Call(ctx context.Context, call Call) CallResult {
	data, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &call.Target,
		Data: call.Data,
	}, nil)
	if err != nil {
		return CallResult{Success: false, Err: err}
	}
	return CallResult{Success: true, Data: data}
}
