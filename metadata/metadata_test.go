package metadata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/metadata"
)

func TestIntegrityHashStableAndFalsifiedByMutation(t *testing.T) {
	body := metadata.Descriptor{Token: common.HexToAddress("0x1"), ChainID: 1, Name: "Frog", Symbol: "FRG", HolderCount: 10}
	h1, err := metadata.IntegrityHash(body)
	if err != nil {
		t.Fatalf("integrity hash: %v", err)
	}
	h2, err := metadata.IntegrityHash(body)
	if err != nil {
		t.Fatalf("integrity hash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected integrity hash to be a pure function of the body")
	}

	body.HolderCount = 11
	h3, err := metadata.IntegrityHash(body)
	if err != nil {
		t.Fatalf("integrity hash: %v", err)
	}
	if h1 == h3 {
		t.Fatal("expected mutating a field to change the integrity hash")
	}
}

func TestDiffPatchAppliedReproducesNextVersion(t *testing.T) {
	prev := metadata.Descriptor{Token: common.HexToAddress("0x1"), ChainID: 1, Name: "Frog", Symbol: "FRG", HolderCount: 10, BondingProgress: 25}
	next := metadata.Descriptor{Token: common.HexToAddress("0x1"), ChainID: 1, Name: "Frog", Symbol: "FRG", HolderCount: 20, BondingProgress: 50}

	ops, err := metadata.DiffPatch(prev, next)
	if err != nil {
		t.Fatalf("diff patch: %v", err)
	}
	if len(ops) == 0 {
		t.Fatal("expected non-empty patch for changed fields")
	}

	applied, err := metadata.ApplyPatch(prev, ops)
	if err != nil {
		t.Fatalf("apply patch: %v", err)
	}
	if applied.HolderCount != next.HolderCount || applied.BondingProgress != next.BondingProgress {
		t.Fatalf("expected applied descriptor to equal next, got %+v", applied)
	}
}

type fakePinProvider struct {
	id  string
	err error
}

func (f *fakePinProvider) ID() string { return f.id }
func (f *fakePinProvider) Pin(ctx context.Context, cid string, body []byte) error { return f.err }

func TestMultiPinAggregatesSuccessAtMinimum(t *testing.T) {
	providers := []metadata.PinProvider{
		&fakePinProvider{id: "p1", err: errors.New("offline")},
		&fakePinProvider{id: "p2"},
		&fakePinProvider{id: "p3"},
	}
	pinner := metadata.NewMultiPin(providers, 2)
	results, success := pinner.Pin(context.Background(), "cid1", []byte("{}"))
	if !success {
		t.Fatalf("expected success with 2/3 providers healthy, got %+v", results)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestMultiPinFailsBelowMinimum(t *testing.T) {
	providers := []metadata.PinProvider{
		&fakePinProvider{id: "p1", err: errors.New("offline")},
		&fakePinProvider{id: "p2", err: errors.New("offline")},
	}
	pinner := metadata.NewMultiPin(providers, 1)
	_, success := pinner.Pin(context.Background(), "cid1", []byte("{}"))
	if success {
		t.Fatal("expected failure when no provider succeeds")
	}
}

func TestPipelineMilestoneFiresOnceAndRespectsRateLimit(t *testing.T) {
	pinner := metadata.NewMultiPin([]metadata.PinProvider{&fakePinProvider{id: "p1"}}, 1)
	rl := metadata.RateLimitConfig{MaxPerWindow: 5 * time.Minute, MaxPerHour: 10}
	pipeline := metadata.NewPipeline(pinner, rl, zerolog.Nop())

	token := common.HexToAddress("0x1")
	body := metadata.Descriptor{Token: token, ChainID: 1, Name: "Frog", Symbol: "FRG", HolderCount: 10}
	now := time.Now()

	v1, err := pipeline.Trigger(context.Background(), metadata.MilestonePoolFill25, body, now)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if v1 == nil || v1.Version != 1 {
		t.Fatalf("expected version 1, got %+v", v1)
	}

	// Same milestone fired again should be a no-op (nil, nil).
	again, err := pipeline.Trigger(context.Background(), metadata.MilestonePoolFill25, body, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if again != nil {
		t.Fatal("expected milestone not to fire twice for the same token")
	}

	// A different milestone within the rate-limit window should be blocked.
	body.HolderCount = 50
	_, err = pipeline.Trigger(context.Background(), metadata.MilestonePoolFill50, body, now.Add(time.Minute))
	if err == nil {
		t.Fatal("expected rate limit to block a second publish within the window")
	}

	// Past the window, the next milestone should succeed and carry a patch.
	v2, err := pipeline.Trigger(context.Background(), metadata.MilestonePoolFill50, body, now.Add(6*time.Minute))
	if err != nil {
		t.Fatalf("trigger after window: %v", err)
	}
	if v2 == nil || v2.Version != 2 {
		t.Fatalf("expected version 2, got %+v", v2)
	}
	if len(v2.PatchAgainstPrev) == 0 {
		t.Fatal("expected non-empty patch against v1")
	}
}
