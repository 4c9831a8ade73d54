package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fees breaks down the cost of a transfer. All values rounded to 2 dp
// at quote creation; downstream consumers must not re-derive them.
type Fees struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	NetworkFee  decimal.Decimal `json:"network_fee"`
	FXSpread    decimal.Decimal `json:"fx_spread"`
	PartnerFee  decimal.Decimal `json:"partner_fee"`
	Total       decimal.Decimal `json:"total"`
}

// Quote is a time-bounded, immutable price commitment.
type Quote struct {
	ID                 string          `json:"id"`
	InputAmount        decimal.Decimal `json:"input_amount"`
	InputCurrency      string          `json:"input_currency"`
	OutputAmount       decimal.Decimal `json:"output_amount"`
	OutputCurrency     string          `json:"output_currency"`
	ExchangeRate       decimal.Decimal `json:"exchange_rate"`
	Fees               Fees            `json:"fees"`
	Corridor           string          `json:"corridor"`
	EstimatedTime      string          `json:"estimated_time"`
	ComplianceRequired bool            `json:"compliance_required"`
	ValidUntil         time.Time       `json:"valid_until"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Expired reports whether the quote is past its validity window.
func (q Quote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}
