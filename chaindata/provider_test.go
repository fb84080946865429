package chaindata_test

import (
	"context"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/chaindata"
)

type fakeClient struct {
	blockHeight   uint64
	gasPriceCalls int
}

func (f *fakeClient) BlockHeight(context.Context) (uint64, error) { return f.blockHeight, nil }
func (f *fakeClient) GasPriceWei(context.Context) (int64, error) {
	f.gasPriceCalls++
	return 1_000_000_000, nil
}
func (f *fakeClient) PoolLiquidity(context.Context, common.Address) (chaindata.PoolLiquidity, error) {
	return chaindata.PoolLiquidity{ReserveBaseWei: 100, ReserveQuoteWei: 100}, nil
}
func (f *fakeClient) HolderAnalysis(context.Context, common.Address) (chaindata.HolderAnalysis, error) {
	return chaindata.HolderAnalysis{HolderCount: 42}, nil
}
func (f *fakeClient) RecentTransactions(context.Context, common.Address, int) ([]chaindata.Transaction, error) {
	return nil, nil
}
func (f *fakeClient) Call(context.Context, chaindata.Call) chaindata.CallResult {
	return chaindata.CallResult{Success: true}
}

func TestNetworkStateIsCached(t *testing.T) {
	client := &fakeClient{blockHeight: 100}
	p := chaindata.NewProvider(client, 10143, zerolog.New(io.Discard))

	if _, err := p.NetworkState(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.NetworkState(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.gasPriceCalls != 1 {
		t.Fatalf("expected gas price to be fetched once (cached second time), got %d calls", client.gasPriceCalls)
	}
}

func TestInvalidatePrefixForcesRefetch(t *testing.T) {
	client := &fakeClient{blockHeight: 100}
	p := chaindata.NewProvider(client, 10143, zerolog.New(io.Discard))

	if _, err := p.NetworkState(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.InvalidatePrefix("network:")
	if _, err := p.NetworkState(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.gasPriceCalls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", client.gasPriceCalls)
	}
}
