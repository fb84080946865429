package submission_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/submission"
)

type fakeHealth struct {
	healthy map[submission.RouteClass]bool
}

func (f *fakeHealth) HealthCheck(route submission.RouteClass) bool { return f.healthy[route] }

type fakeTransport struct {
	mu    sync.Mutex
	calls []submission.RouteClass
	err   error
	hash  string
}

func (f *fakeTransport) Send(ctx context.Context, route submission.RouteClass, account string, nonce uint64, bundleID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, route)
	if f.err != nil {
		return "", f.err
	}
	return f.hash, nil
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]submission.SubmissionAuditEntry
}

func (f *fakeSink) WriteAuditEntries(ctx context.Context, entries []submission.SubmissionAuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]submission.SubmissionAuditEntry, len(entries))
	copy(cp, entries)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func basePolicy() submission.Policy {
	return submission.Policy{
		AllowPublicRPC:       true,
		PublicRPCMaxValueWei: 500,
		SessionBudgetWei:     1_000_000,
	}
}

func TestSubmitPrefersPrivateRelayWhenHealthy(t *testing.T) {
	health := &fakeHealth{healthy: map[submission.RouteClass]bool{submission.RoutePrivateRelay: true}}
	transport := &fakeTransport{hash: "0xabc"}
	sink := &fakeSink{}
	audit := submission.NewAuditPipeline(sink, zerolog.Nop())
	audit.Start(context.Background())
	defer audit.Stop()

	router := submission.NewRouter(transport, health, submission.NewNonceManager(30*time.Second), audit, zerolog.Nop())
	outcome, err := router.Submit(context.Background(), submission.SubmitRequest{
		CorrelationID: "c1", BundleID: "b1", Account: "0xacct", To: "0xtarget", ValueWei: 10, Policy: basePolicy(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Success || outcome.Route != submission.RoutePrivateRelay {
		t.Fatalf("expected success via private_relay, got %+v", outcome)
	}
}

func TestSubmitFallsBackToDeferredThenPublicRPC(t *testing.T) {
	health := &fakeHealth{healthy: map[submission.RouteClass]bool{submission.RoutePublicRPC: true}}
	transport := &fakeTransport{hash: "0xabc"}
	sink := &fakeSink{}
	audit := submission.NewAuditPipeline(sink, zerolog.Nop())
	audit.Start(context.Background())
	defer audit.Stop()

	router := submission.NewRouter(transport, health, submission.NewNonceManager(30*time.Second), audit, zerolog.Nop())
	outcome, err := router.Submit(context.Background(), submission.SubmitRequest{
		CorrelationID: "c1", BundleID: "b1", Account: "0xacct", To: "0xtarget", ValueWei: 100, Policy: basePolicy(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Route != submission.RoutePublicRPC {
		t.Fatalf("expected public_rpc fallback, got %s", outcome.Route)
	}
}

func TestSubmitBlocksPublicRPCWhenValueExceedsThreshold(t *testing.T) {
	health := &fakeHealth{healthy: map[submission.RouteClass]bool{submission.RoutePublicRPC: true}}
	transport := &fakeTransport{hash: "0xabc"}
	sink := &fakeSink{}
	audit := submission.NewAuditPipeline(sink, zerolog.Nop())
	audit.Start(context.Background())
	defer audit.Stop()

	router := submission.NewRouter(transport, health, submission.NewNonceManager(30*time.Second), audit, zerolog.Nop())
	outcome, err := router.Submit(context.Background(), submission.SubmitRequest{
		CorrelationID: "c1", BundleID: "b1", Account: "0xacct", To: "0xtarget", ValueWei: 1000, Policy: basePolicy(),
	})
	if err == nil {
		t.Fatal("expected policy violation error")
	}
	if _, ok := err.(*submission.PolicyViolationError); !ok {
		t.Fatalf("expected PolicyViolationError, got %T", err)
	}
	if !outcome.AuditEntry.SecurityEvent {
		t.Fatal("expected security event flagged on blocked fallback")
	}
}

func TestSubmitNeverSilentlyFallsBackWhenNoRouteHealthy(t *testing.T) {
	health := &fakeHealth{healthy: map[submission.RouteClass]bool{}}
	transport := &fakeTransport{hash: "0xabc"}
	sink := &fakeSink{}
	audit := submission.NewAuditPipeline(sink, zerolog.Nop())
	audit.Start(context.Background())
	defer audit.Stop()

	policy := basePolicy()
	policy.AllowPublicRPC = true
	router := submission.NewRouter(transport, health, submission.NewNonceManager(30*time.Second), audit, zerolog.Nop())
	_, err := router.Submit(context.Background(), submission.SubmitRequest{
		CorrelationID: "c1", BundleID: "b1", Account: "0xacct", To: "0xtarget", ValueWei: 10, Policy: policy,
	})
	if err == nil {
		t.Fatal("expected security breach error when public_rpc itself is unhealthy")
	}
	if _, ok := err.(*submission.SecurityBreachError); !ok {
		t.Fatalf("expected SecurityBreachError, got %T", err)
	}
}

func TestNonceReleasedOnFailureAndReused(t *testing.T) {
	nm := submission.NewNonceManager(30 * time.Second)
	n1 := nm.Reserve("0xacct")
	nm.Release("0xacct", n1)
	n2 := nm.Reserve("0xacct")
	if n1 != n2 {
		t.Fatalf("expected released nonce %d to be reused, got %d", n1, n2)
	}
}

func TestNonceConfirmedNotReusable(t *testing.T) {
	nm := submission.NewNonceManager(30 * time.Second)
	n1 := nm.Reserve("0xacct")
	if err := nm.Confirm("0xacct", n1); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	n2 := nm.Reserve("0xacct")
	if n1 == n2 {
		t.Fatal("expected confirmed nonce not to be reused")
	}
}

func TestSubmitFailureReleasesNonceAndWritesAuditEntry(t *testing.T) {
	health := &fakeHealth{healthy: map[submission.RouteClass]bool{submission.RoutePrivateRelay: true}}
	transport := &fakeTransport{err: context.DeadlineExceeded}
	sink := &fakeSink{}
	audit := submission.NewAuditPipeline(sink, zerolog.Nop())
	audit.Start(context.Background())

	router := submission.NewRouter(transport, health, submission.NewNonceManager(30*time.Second), audit, zerolog.Nop())
	outcome, err := router.Submit(context.Background(), submission.SubmitRequest{
		CorrelationID: "c1", BundleID: "b1", Account: "0xacct", To: "0xtarget", ValueWei: 10, Policy: basePolicy(),
	})
	if err == nil {
		t.Fatal("expected transport failure to propagate")
	}
	if outcome.AuditEntry.Action != submission.ActionFailed {
		t.Fatalf("expected failed audit entry, got %s", outcome.AuditEntry.Action)
	}
	audit.Stop()

	if sink.count() == 0 {
		t.Fatal("expected audit entries flushed to sink")
	}
}
