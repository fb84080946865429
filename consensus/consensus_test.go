package consensus_test

import (
	"testing"

	"github.com/launchsentinel/core/consensus"
)

func opinion(role consensus.Role, rec consensus.Recommendation, confidence, risk float64) consensus.AgentOpinion {
	return consensus.AgentOpinion{Role: role, Recommendation: rec, Confidence: confidence, Risk: risk}
}

func TestAdversarialVetoOverridesMajority(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleOnChain, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleRisk, consensus.RecommendExecute, 0.9, 0.1),
		{Role: consensus.RoleAdversarial, Recommendation: consensus.RecommendHold, Confidence: 0.5, Risk: 0.2, IsTrap: true, TrapConfidence: 0.95},
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusReject || !d.AdversarialVeto {
		t.Fatalf("expected REJECT with adversarial veto, got %+v", d)
	}
}

func TestFourExecuteOneRejectYieldsExecute(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleOnChain, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleRisk, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleAdversarial, consensus.RecommendReject, 0.5, 0.3),
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusExecute {
		t.Fatalf("expected EXECUTE, got %+v", d)
	}
	if d.Agreement != 0.8 {
		t.Fatalf("expected agreement 0.80, got %f", d.Agreement)
	}
	if d.AveragedConfidence < 0.85 {
		t.Fatalf("expected averaged confidence >= 0.85, got %f", d.AveragedConfidence)
	}
}

func TestTwoExecuteTwoHoldOneRejectTieBreaksToHold(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.95, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.95, 0.1),
		opinion(consensus.RoleOnChain, consensus.RecommendHold, 0.95, 0.1),
		opinion(consensus.RoleRisk, consensus.RecommendHold, 0.95, 0.1),
		opinion(consensus.RoleAdversarial, consensus.RecommendReject, 0.9, 0.1),
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusHold {
		t.Fatalf("expected HOLD from tie-break, got %+v", d)
	}
}

func TestFewerThanMinAgentsYieldsNeedMoreData(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.9, 0.1),
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusNeedMoreData {
		t.Fatalf("expected NEED_MORE_DATA, got %+v", d)
	}
}

func TestDegradedOpinionsExcludedFromQuorum(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.9, 0.1),
		{Role: consensus.RoleOnChain, Degraded: true, DegradedReason: "timeout"},
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusNeedMoreData {
		t.Fatalf("expected NEED_MORE_DATA with only 2 non-degraded opinions, got %+v", d)
	}
}

func TestHighRiskForcesReject(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendHold, 0.9, 0.9),
		opinion(consensus.RoleMacro, consensus.RecommendHold, 0.9, 0.9),
		opinion(consensus.RoleOnChain, consensus.RecommendHold, 0.9, 0.9),
	}
	d := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if d.Status != consensus.StatusReject {
		t.Fatalf("expected REJECT when averaged risk exceeds cap, got %+v", d)
	}
}

func TestDeterministic(t *testing.T) {
	opinions := []consensus.AgentOpinion{
		opinion(consensus.RoleScout, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleMacro, consensus.RecommendExecute, 0.9, 0.1),
		opinion(consensus.RoleOnChain, consensus.RecommendExecute, 0.9, 0.1),
	}
	a := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	b := consensus.Aggregate(opinions, consensus.DefaultThresholds())
	if a.Status != b.Status || a.AveragedConfidence != b.AveragedConfidence || a.Agreement != b.Agreement {
		t.Fatalf("expected deterministic output: %+v vs %+v", a, b)
	}
}
