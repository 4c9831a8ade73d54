package compliance

import "context"

// Recommendation is the outcome of a screening check.
type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationReview  Recommendation = "review"
	RecommendationReject  Recommendation = "reject"
)

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Result is a single screening outcome. Never mutated after creation.
type Result struct {
	Success        bool           `json:"success"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	RiskScore      float64        `json:"risk_score"`
	Recommendation Recommendation `json:"recommendation"`
	Flags          []string       `json:"flags,omitempty"`
	Details        string         `json:"details,omitempty"`
}

// IdentityRequest carries the sender data handed to KYC screening.
type IdentityRequest struct {
	SenderID      string
	RecipientName string
	ToCurrency    string
}

// RiskRequest carries the transaction data handed to AML screening.
type RiskRequest struct {
	SenderID    string
	RecipientID string
	AmountUSD   float64
	Corridor    string
	Purpose     string
}

// IdentityScreener verifies sender identity with an external vendor.
type IdentityScreener interface {
	ScreenIdentity(ctx context.Context, req IdentityRequest) (Result, error)
}

// RiskScreener scores transactional risk with an external vendor.
type RiskScreener interface {
	ScreenRisk(ctx context.Context, req RiskRequest) (Result, error)
}

func (r Recommendation) restrictiveness() int {
	switch r {
	case RecommendationReject:
		return 2
	case RecommendationReview:
		return 1
	default:
		return 0
	}
}

// MoreRestrictive reports whether r is stricter than other.
func (r Recommendation) MoreRestrictive(other Recommendation) bool {
	return r.restrictiveness() > other.restrictiveness()
}
