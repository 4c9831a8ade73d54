package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
	"remit-rails/internal/quote"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusCreated           Status = "CREATED"
	StatusComplianceReview  Status = "COMPLIANCE_REVIEW"
	StatusKYCPending        Status = "KYC_PENDING"
	StatusProcessing        Status = "PROCESSING"
	StatusBlockchainPending Status = "BLOCKCHAIN_PENDING"
	StatusConverting        Status = "CONVERTING"
	StatusSettling          Status = "SETTLING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether cancellation is still permitted. Once
// funds movement starts there is no compensating step, so cancellation
// is only honored before the pipeline reaches PROCESSING.
func (s Status) Cancellable() bool {
	switch s {
	case StatusCreated, StatusKYCPending, StatusComplianceReview:
		return true
	default:
		return false
	}
}

// RecipientDetails identify the receiving party.
type RecipientDetails struct {
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	BankAccount string `json:"bank_account"`
}

// Request is the immutable submission attached to a payment.
type Request struct {
	SenderID         string           `json:"sender_id"`
	RecipientID      string           `json:"recipient_id"`
	AmountUSD        decimal.Decimal  `json:"amount_usd"`
	FromCurrency     string           `json:"from_currency"`
	ToCurrency       string           `json:"to_currency"`
	RecipientDetails RecipientDetails `json:"recipient_details"`
	Purpose          string           `json:"purpose,omitempty"`
	Reference        string           `json:"reference,omitempty"`
}

// Payment tracks one transfer through the settlement pipeline. The
// persistence layer is the source of truth for concurrent readers.
type Payment struct {
	ID                      string             `json:"id"`
	QuoteID                 string             `json:"quote_id"`
	Request                 Request            `json:"request"`
	Steps                   Steps              `json:"steps"`
	Fees                    quote.Fees         `json:"fees"`
	Status                  Status             `json:"status"`
	FailureReason           string             `json:"failure_reason,omitempty"`
	Compliance              *compliance.Result `json:"compliance,omitempty"`
	RailID                  string             `json:"rail_id,omitempty"`
	RailName                string             `json:"rail_name,omitempty"`
	FallbackRailID          string             `json:"fallback_rail_id,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
	CompletedAt             *time.Time         `json:"completed_at,omitempty"`
	EstimatedCompletionTime string             `json:"estimated_completion_time,omitempty"`
}

// FailedStep returns the failed step, if any.
func (p *Payment) FailedStep() *Step {
	for i := range p.Steps {
		if p.Steps[i].Status == StepFailed {
			return &p.Steps[i]
		}
	}
	return nil
}
