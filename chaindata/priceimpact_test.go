package chaindata_test

import (
	"testing"

	"github.com/launchsentinel/core/chaindata"
)

func TestEstimatePriceImpactSmallTradeLowImpact(t *testing.T) {
	pool := chaindata.PoolLiquidity{
		ReserveBaseWei:  1_000_000,
		ReserveQuoteWei: 1_000_000,
	}
	est := chaindata.EstimatePriceImpact(pool, 1_000, true, 2.5)
	if est.Warning != chaindata.ImpactNone && est.Warning != chaindata.ImpactLow {
		t.Fatalf("expected low impact for small trade, got %s (%.4f%%)", est.Warning, est.ImpactPct)
	}
	if est.MinimumOutWei >= est.ExpectedOutWei {
		t.Fatalf("expected minimum out below expected out, got min=%d expected=%d", est.MinimumOutWei, est.ExpectedOutWei)
	}
}

func TestEstimatePriceImpactLargeTradeSevere(t *testing.T) {
	pool := chaindata.PoolLiquidity{
		ReserveBaseWei:  1_000_000,
		ReserveQuoteWei: 1_000_000,
	}
	est := chaindata.EstimatePriceImpact(pool, 900_000, true, 2.5)
	if est.Warning != chaindata.ImpactSevere && est.Warning != chaindata.ImpactHigh {
		t.Fatalf("expected high/severe impact for dominant trade, got %s (%.2f%%)", est.Warning, est.ImpactPct)
	}
}

func TestEstimatePriceImpactEmptyPool(t *testing.T) {
	est := chaindata.EstimatePriceImpact(chaindata.PoolLiquidity{}, 100, true, 2.5)
	if est.Warning != chaindata.ImpactSevere {
		t.Fatalf("expected severe warning for empty pool, got %s", est.Warning)
	}
}
