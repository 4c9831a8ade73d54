package compliance

import "sort"

// Aggregator combines independent identity and risk screening results
// into one recommendation. Pure; performs no I/O.
type Aggregator struct {
	identityWeight float64
	riskWeight     float64
}

// NewAggregator builds an aggregator with the given input weights.
// Transactional risk is expected to carry the larger weight.
func NewAggregator(identityWeight, riskWeight float64) *Aggregator {
	if identityWeight <= 0 && riskWeight <= 0 {
		identityWeight = 0.4
		riskWeight = 0.6
	}
	return &Aggregator{identityWeight: identityWeight, riskWeight: riskWeight}
}

// Combine merges the two screening results. The combined recommendation
// is the most restrictive of the inputs; flags are the sorted union.
func (a *Aggregator) Combine(identity, risk Result) Result {
	score := identity.RiskScore*a.identityWeight + risk.RiskScore*a.riskWeight

	rec := identity.Recommendation
	if risk.Recommendation.MoreRestrictive(rec) {
		rec = risk.Recommendation
	}

	details := identity.Details
	if risk.Details != "" {
		if details != "" {
			details += "; "
		}
		details += risk.Details
	}

	return Result{
		Success:        rec != RecommendationReject,
		RiskLevel:      levelForScore(score),
		RiskScore:      score,
		Recommendation: rec,
		Flags:          unionFlags(identity.Flags, risk.Flags),
		Details:        details,
	}
}

func levelForScore(score float64) RiskLevel {
	switch {
	case score < 40:
		return RiskLow
	case score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func unionFlags(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, flags := range [][]string{a, b} {
		for _, f := range flags {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			union = append(union, f)
		}
	}
	sort.Strings(union)
	return union
}
