package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"remit-rails/internal/rates"
)

var (
	// ErrInvalidAmount rejects non-positive transfer amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrAmountExceedsLimit rejects amounts above the transaction ceiling.
	ErrAmountExceedsLimit = errors.New("amount exceeds transaction limit")
	// ErrCorridorNotSupported rejects corridors without a known rate.
	ErrCorridorNotSupported = errors.New("corridor not supported")
)

// Options hold the pricing parameters.
type Options struct {
	PlatformFeePct      decimal.Decimal
	NetworkFee          decimal.Decimal
	MaxAmount           decimal.Decimal
	ComplianceThreshold decimal.Decimal
	TTL                 time.Duration
	EstimatedTime       string
}

// Request asks for a price on a directed corridor.
type Request struct {
	Amount       decimal.Decimal
	FromCurrency string
	ToCurrency   string
}

// Calculator prices transfers against a corridor rate source. Pure
// aside from the rate lookup; persistence is the caller's concern.
type Calculator struct {
	opts  Options
	rates rates.Source
	now   func() time.Time
}

// NewCalculator builds a calculator with defaults filled in.
func NewCalculator(opts Options, source rates.Source) *Calculator {
	if opts.MaxAmount.IsZero() {
		opts.MaxAmount = decimal.NewFromInt(10000)
	}
	if opts.ComplianceThreshold.IsZero() {
		opts.ComplianceThreshold = decimal.NewFromInt(1000)
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.EstimatedTime == "" {
		opts.EstimatedTime = "1-2 minutes"
	}
	return &Calculator{opts: opts, rates: source, now: time.Now}
}

// Price computes a quote. Monetary outputs are rounded to 2 decimal
// places exactly once, here, to avoid drift downstream.
func (c *Calculator) Price(ctx context.Context, req Request) (Quote, error) {
	if req.Amount.Sign() <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	if req.Amount.GreaterThan(c.opts.MaxAmount) {
		return Quote{}, fmt.Errorf("%w: %s > %s", ErrAmountExceedsLimit, req.Amount, c.opts.MaxAmount)
	}

	from := strings.ToUpper(req.FromCurrency)
	to := strings.ToUpper(req.ToCurrency)

	rate, err := c.rates.Rate(ctx, from, to)
	if err != nil {
		if errors.Is(err, rates.ErrRateUnavailable) {
			return Quote{}, fmt.Errorf("%w: %s", ErrCorridorNotSupported, rates.Corridor(from, to))
		}
		return Quote{}, fmt.Errorf("lookup corridor rate: %w", err)
	}

	platformFee := req.Amount.Mul(c.opts.PlatformFeePct).Round(2)
	networkFee := c.opts.NetworkFee.Round(2)
	totalFees := platformFee.Add(networkFee).Round(2)
	outputAmount := req.Amount.Sub(totalFees).Mul(rate).Round(2)

	now := c.now().UTC()
	return Quote{
		ID:             uuid.NewString(),
		InputAmount:    req.Amount.Round(2),
		InputCurrency:  from,
		OutputAmount:   outputAmount,
		OutputCurrency: to,
		ExchangeRate:   rate,
		Fees: Fees{
			PlatformFee: platformFee,
			NetworkFee:  networkFee,
			FXSpread:    decimal.Zero.Round(2),
			PartnerFee:  decimal.Zero.Round(2),
			Total:       totalFees,
		},
		Corridor:           rates.Corridor(from, to),
		EstimatedTime:      c.opts.EstimatedTime,
		ComplianceRequired: req.Amount.GreaterThan(c.opts.ComplianceThreshold),
		ValidUntil:         now.Add(c.opts.TTL),
		CreatedAt:          now,
	}, nil
}
