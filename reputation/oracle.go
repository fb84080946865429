package reputation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// VerificationOracle verifies one submitted action's evidence and
// reports a confidence score. Mirrors provider.Provider's
// interface-with-registry shape: multiple concrete oracles (mock,
// on-chain, HTTP) live behind this one interface, and OracleRegistry
// routes by action kind the way provider.Registry routes by provider
// name.
type VerificationOracle interface {
	Name() string
	Verify(ctx context.Context, kind ActionKind, evidence []byte) (OracleVerdict, error)
}

// OracleRegistry routes a verification request to the oracle
// registered for its action kind.
type OracleRegistry struct {
	byKind map[ActionKind]VerificationOracle
}

// NewOracleRegistry builds an empty registry.
func NewOracleRegistry() *OracleRegistry {
	return &OracleRegistry{byKind: make(map[ActionKind]VerificationOracle)}
}

// Register binds an oracle to an action kind.
func (r *OracleRegistry) Register(kind ActionKind, oracle VerificationOracle) {
	r.byKind[kind] = oracle
}

// Verify dispatches to the oracle registered for kind.
func (r *OracleRegistry) Verify(ctx context.Context, kind ActionKind, evidence []byte) (OracleVerdict, error) {
	oracle, ok := r.byKind[kind]
	if !ok {
		return OracleVerdict{}, fmt.Errorf("no verification oracle registered for action kind %s", kind)
	}
	return oracle.Verify(ctx, kind, evidence)
}

// MockOracle returns the same verdict (AlwaysVerified, Confidence) for
// every action, with the SHA-256 of the evidence as its evidence hash;
// useful for tests and as a default before an on-chain/HTTP oracle is
// wired in.
type MockOracle struct {
	AlwaysVerified bool
	Confidence     float64
}

func (m *MockOracle) Name() string { return "mock" }

func (m *MockOracle) Verify(ctx context.Context, kind ActionKind, evidence []byte) (OracleVerdict, error) {
	sum := sha256.Sum256(evidence)
	return OracleVerdict{
		Verified:     m.AlwaysVerified,
		Confidence:   m.Confidence,
		EvidenceHash: hex.EncodeToString(sum[:]),
	}, nil
}
