package runledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/consensus"
	"github.com/launchsentinel/core/runledger"
)

func testBundle() agents.SignalBundle {
	return agents.SignalBundle{
		OnChain: &agents.OnChainSnapshot{
			ChainID:     10143,
			TargetToken: "0xabc",
		},
	}
}

func TestCreateAppendFreezeLifecycle(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	now := time.Now()

	record, err := ledger.CreateRun("v1", testBundle(), now)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if record.Status != runledger.StatusRunning {
		t.Fatalf("expected new run to be running, got %s", record.Status)
	}
	if record.InputChecksum == "" {
		t.Fatal("expected a non-empty input checksum")
	}

	opinion := consensus.AgentOpinion{Role: consensus.RoleScout, Recommendation: consensus.RecommendExecute, Confidence: 0.8}
	if err := ledger.AppendOpinion(record.RunID, opinion, now.Add(time.Second)); err != nil {
		t.Fatalf("append opinion: %v", err)
	}

	decision := consensus.Decision{Status: consensus.StatusExecute}
	if err := ledger.SetDecision(record.RunID, decision, now.Add(2*time.Second)); err != nil {
		t.Fatalf("set decision: %v", err)
	}

	frozen, err := ledger.Freeze(record.RunID, runledger.StatusComplete, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if frozen.ContentHash == "" {
		t.Fatal("expected a content hash after freeze")
	}
	if len(frozen.Opinions) != 1 || frozen.Decision == nil {
		t.Fatalf("expected frozen record to retain opinion and decision, got %+v", frozen)
	}
}

func TestAppendAfterFreezeRejected(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	now := time.Now()

	record, _ := ledger.CreateRun("v1", testBundle(), now)
	if _, err := ledger.Freeze(record.RunID, runledger.StatusComplete, now.Add(time.Second)); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	opinion := consensus.AgentOpinion{Role: consensus.RoleRisk, Recommendation: consensus.RecommendHold}
	if err := ledger.AppendOpinion(record.RunID, opinion, now.Add(2*time.Second)); err == nil {
		t.Fatal("expected append after freeze to be rejected")
	}
}

func TestContentHashDeterministicAndDiffersOnContent(t *testing.T) {
	now := time.Now()

	ledgerA := runledger.NewLedger(zerolog.Nop())
	recordA, _ := ledgerA.CreateRun("v1", testBundle(), now)
	ledgerA.AppendOpinion(recordA.RunID, consensus.AgentOpinion{Role: consensus.RoleScout}, now)
	frozenA, _ := ledgerA.Freeze(recordA.RunID, runledger.StatusComplete, now.Add(time.Second))

	ledgerB := runledger.NewLedger(zerolog.Nop())
	recordB, _ := ledgerB.CreateRun("v1", testBundle(), now)
	ledgerB.AppendOpinion(recordB.RunID, consensus.AgentOpinion{Role: consensus.RoleMacro}, now)
	frozenB, _ := ledgerB.Freeze(recordB.RunID, runledger.StatusComplete, now.Add(time.Second))

	if frozenA.ContentHash == frozenB.ContentHash {
		t.Fatal("expected differing opinions to produce differing content hashes")
	}
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	now := time.Now()

	first, _ := ledger.CreateRun("v1", testBundle(), now)
	second, _ := ledger.CreateRun("v1", testBundle(), now.Add(time.Second))

	recent := ledger.ListRecent(10)
	if len(recent) != 2 || recent[0].RunID != second.RunID || recent[1].RunID != first.RunID {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}
}

func TestReplayPacesAndRespectsCancellation(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	now := time.Now()

	record, _ := ledger.CreateRun("v1", testBundle(), now)
	ledger.AppendOpinion(record.RunID, consensus.AgentOpinion{Role: consensus.RoleScout}, now.Add(time.Millisecond))
	ledger.Freeze(record.RunID, runledger.StatusComplete, now.Add(2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stream, err := ledger.Replay(ctx, record.RunID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	count := 0
	for range stream {
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one replayed event")
	}
}

func TestReplayUnknownRunErrors(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	if _, err := ledger.Replay(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error replaying an unknown run")
	}
}
