package sessionkey_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/config"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/sessionkey"
)

func testManager(t *testing.T) (*sessionkey.Manager, *envguard.Guard) {
	t.Helper()
	guard := envguard.New(&config.Config{InitialMode: "AUTONOMOUS"}, zerolog.Nop())
	var sealKey [32]byte
	copy(sealKey[:], []byte("0123456789abcdef0123456789abcdef"))
	return sessionkey.NewManager(guard, sealKey, zerolog.Nop()), guard
}

func testSelector(b byte) sessionkey.Selector {
	return sessionkey.Selector{b, b, b, b}
}

func TestCreateRejectsBudgetBelowMinimum(t *testing.T) {
	mgr, _ := testManager(t)
	_, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei: 0,
		VelocityCapWei: 100,
		Expiry:         time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected error for zero budget")
	}
}

func TestCreateRejectsExpiryBeyondMaxValidity(t *testing.T) {
	mgr, _ := testManager(t)
	_, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei: 1000,
		VelocityCapWei: 100,
		Expiry:         time.Now().Add(48 * time.Hour),
	})
	if err == nil {
		t.Fatal("expected error for expiry beyond 24h")
	}
}

func TestSpentNeverExceedsTotalBudget(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   10000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 700, Nonce: 1}
	res := mgr.Validate(op)
	if !res.Valid {
		t.Fatalf("expected first op valid, got %v", res.Err)
	}
	if err := mgr.Record(op); err != nil {
		t.Fatalf("record: %v", err)
	}

	op2 := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 400, Nonce: 2}
	res2 := mgr.Validate(op2)
	if res2.Valid {
		t.Fatal("expected second op to exceed remaining budget")
	}
	serr, ok := res2.Err.(*sessionkey.SessionError)
	if !ok || serr.Code != sessionkey.ErrBudget {
		t.Fatalf("expected budget error, got %v", res2.Err)
	}
}

func TestVelocityExceedingTransactionRefused(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1_000_000,
		VelocityCapWei:   500,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 300, Nonce: 1}
	if res := mgr.Validate(op); !res.Valid {
		t.Fatalf("expected first op within velocity cap, got %v", res.Err)
	}
	if err := mgr.Record(op); err != nil {
		t.Fatalf("record: %v", err)
	}

	op2 := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 300, Nonce: 2}
	res2 := mgr.Validate(op2)
	if res2.Valid {
		t.Fatal("expected second op to exceed velocity cap within window")
	}
	serr, ok := res2.Err.(*sessionkey.SessionError)
	if !ok || serr.Code != sessionkey.ErrVelocity {
		t.Fatalf("expected velocity error, got %v", res2.Err)
	}
}

func TestRevokedSessionNeverValidatesAgain(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   1000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mgr.Revoke(key.ID, "operator requested"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 1, Nonce: 1}
	res := mgr.Validate(op)
	if res.Valid {
		t.Fatal("expected revoked session to never validate")
	}
	serr, ok := res.Err.(*sessionkey.SessionError)
	if !ok || serr.Code != sessionkey.ErrRevoked {
		t.Fatalf("expected revoked error, got %v", res.Err)
	}

	// Rotation should also fail: a revoked session cannot produce a successor.
	if _, err := mgr.Rotate(key.ID); err == nil {
		t.Fatal("expected rotate on revoked session to fail")
	}
}

func TestNonceReuseRejected(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   1000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 10, Nonce: 1}
	if res := mgr.Validate(op); !res.Valid {
		t.Fatalf("expected valid, got %v", res.Err)
	}
	if err := mgr.Record(op); err != nil {
		t.Fatalf("record: %v", err)
	}

	res2 := mgr.Validate(op)
	if res2.Valid {
		t.Fatal("expected nonce reuse to be rejected")
	}
	serr, ok := res2.Err.(*sessionkey.SessionError)
	if !ok || serr.Code != sessionkey.ErrNonce {
		t.Fatalf("expected nonce error, got %v", res2.Err)
	}
}

func TestUnknownSelectorAndTargetRejected(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   1000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	badSelector := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(9), Target: "0xTARGET", AmountWei: 1, Nonce: 1}
	if res := mgr.Validate(badSelector); res.Valid {
		t.Fatal("expected disallowed selector to be rejected")
	}

	badTarget := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xOTHER", AmountWei: 1, Nonce: 2}
	if res := mgr.Validate(badTarget); res.Valid {
		t.Fatal("expected disallowed target to be rejected")
	}
}

func TestKillSwitchBlocksValidationAndRevokesAll(t *testing.T) {
	mgr, guard := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   1000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	guard.EngageKillSwitch()
	count := mgr.KillSwitchRevokeAll("kill switch engaged")
	if count != 1 {
		t.Fatalf("expected 1 session revoked, got %d", count)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 1, Nonce: 1}
	res := mgr.Validate(op)
	if res.Valid {
		t.Fatal("expected validate to fail while kill switch active")
	}
	serr, ok := res.Err.(*sessionkey.SessionError)
	if !ok || serr.Code != sessionkey.ErrKillSwitch {
		t.Fatalf("expected kill switch error, got %v", res.Err)
	}
}

func TestRotateCarriesRemainingBudgetAndRevokesPredecessor(t *testing.T) {
	mgr, _ := testManager(t)
	key, err := mgr.Create(sessionkey.CreateOptions{
		TotalBudgetWei:   1000,
		VelocityCapWei:   1000,
		Expiry:           time.Now().Add(time.Hour),
		AllowedSelectors: []sessionkey.Selector{testSelector(1)},
		AllowedTargets:   []string{"0xTARGET"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	op := sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 300, Nonce: 1}
	if res := mgr.Validate(op); !res.Valid {
		t.Fatalf("expected valid, got %v", res.Err)
	}
	if err := mgr.Record(op); err != nil {
		t.Fatalf("record: %v", err)
	}

	successor, err := mgr.Rotate(key.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if successor.TotalBudgetWei != 700 {
		t.Fatalf("expected successor budget 700, got %d", successor.TotalBudgetWei)
	}

	if res := mgr.Validate(sessionkey.SignedOp{SessionID: key.ID, Selector: testSelector(1), Target: "0xTARGET", AmountWei: 1, Nonce: 2}); res.Valid {
		t.Fatal("expected predecessor to be revoked after rotation")
	}
}
