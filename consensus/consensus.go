package consensus

import "time"

// Aggregate implements spec §4.6's seven-step algorithm. It is a pure
// function: given the same opinions and thresholds it always returns
// the same decision.
func Aggregate(opinions []AgentOpinion, t Thresholds) Decision {
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}

	nonDegraded := filterNonDegraded(opinions)

	// Step 1: insufficient signal.
	if len(nonDegraded) < t.MinAgents {
		return Decision{Status: StatusNeedMoreData, ExpiresAt: expiry()}
	}

	// Step 2: adversarial veto overrides everything else.
	if veto, reason := adversarialVeto(opinions, t.AdversarialVetoThresh); veto {
		return Decision{
			Status:          StatusReject,
			AdversarialVeto: true,
			VetoReason:      reason,
			ExpiresAt:       expiry(),
		}
	}

	// Step 3: majority recommendation, tie-break hold > execute > reject.
	majority := majorityRecommendation(nonDegraded)

	// Step 4/5: averaged confidence and agreement are computed over the
	// subset of opinions that concur with the majority — this is the
	// population the confidence/agreement figures characterize.
	concurring := filterByRecommendation(nonDegraded, majority)
	averagedConfidence := weightedMeanConfidence(concurring)
	averagedRisk := weightedMeanRisk(nonDegraded)
	agreement := float64(len(concurring)) / float64(len(nonDegraded))

	decision := Decision{
		AveragedConfidence:   averagedConfidence,
		AveragedRisk:         averagedRisk,
		Agreement:            agreement,
		ExpiresAt:            expiry(),
	}

	switch {
	case majority == RecommendExecute && averagedConfidence >= t.ConfidenceThreshold && agreement >= t.AgreementThreshold:
		decision.Status = StatusExecute
	case majority == RecommendReject || averagedRisk > t.RiskCap:
		decision.Status = StatusReject
	case t.ManualApprovalActive:
		decision.Status = StatusManualReview
	default:
		decision.Status = StatusHold
	}

	return decision
}

func expiry() time.Time {
	return time.Now().UTC().Add(30 * time.Minute)
}

func filterNonDegraded(opinions []AgentOpinion) []AgentOpinion {
	var out []AgentOpinion
	for _, o := range opinions {
		if !o.Degraded && o.Confidence > 0 {
			out = append(out, o)
		}
	}
	return out
}

func adversarialVeto(opinions []AgentOpinion, threshold float64) (bool, string) {
	for _, o := range opinions {
		if o.Role == RoleAdversarial && o.IsTrap && o.TrapConfidence >= threshold {
			return true, "adversarial analyzer flagged a trap pattern with high confidence"
		}
	}
	return false, ""
}

// majorityRecommendation counts votes across non-degraded opinions and
// tie-breaks in the order hold > execute > reject.
func majorityRecommendation(opinions []AgentOpinion) Recommendation {
	counts := map[Recommendation]int{}
	for _, o := range opinions {
		counts[o.Recommendation]++
	}

	best := RecommendHold
	bestCount := -1
	for _, candidate := range []Recommendation{RecommendHold, RecommendExecute, RecommendReject} {
		if counts[candidate] > bestCount {
			bestCount = counts[candidate]
			best = candidate
		}
	}
	return best
}

func filterByRecommendation(opinions []AgentOpinion, rec Recommendation) []AgentOpinion {
	var out []AgentOpinion
	for _, o := range opinions {
		if o.Recommendation == rec {
			out = append(out, o)
		}
	}
	return out
}

func weightedMeanConfidence(opinions []AgentOpinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	var weightedSum, weightSum float64
	for _, o := range opinions {
		w := 1 - o.Risk
		if w < 0 {
			w = 0
		}
		weightedSum += o.Confidence * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

func weightedMeanRisk(opinions []AgentOpinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	var sum float64
	for _, o := range opinions {
		sum += o.Risk
	}
	return sum / float64(len(opinions))
}
