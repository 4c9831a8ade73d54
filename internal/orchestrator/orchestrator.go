package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"remit-rails/internal/payment"
	"remit-rails/internal/pipeline"
	"remit-rails/internal/quote"
	"remit-rails/internal/rail"
	"remit-rails/internal/storage"
)

var (
	// ErrQuoteNotFound indicates the referenced quote was never issued
	// or never persisted.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrQuoteExpired rejects payments against a quote past its window.
	ErrQuoteExpired = errors.New("quote expired")
	// ErrQuoteAlreadyUsed enforces single-use quotes: once a payment
	// references a quote, the quote is consumed unless that payment
	// ended FAILED or CANCELLED.
	ErrQuoteAlreadyUsed = errors.New("quote already used by another payment")
	// ErrPaymentNotFound indicates an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrCancellationNotAllowed rejects cancellation once funds movement
	// has started.
	ErrCancellationNotAllowed = errors.New("payment can no longer be cancelled")
)

// Options tune orchestration behaviour.
type Options struct {
	// Priority is the rail scoring dimension; empty means cost.
	Priority rail.Priority
	// Synchronous runs the pipeline on the caller's goroutine instead of
	// detaching it. The CLI send path uses this so the process lives
	// exactly as long as the payment.
	Synchronous bool
}

// SendRequest submits a payment against a previously issued quote.
type SendRequest struct {
	QuoteID          string
	SenderID         string
	RecipientID      string
	RecipientDetails payment.RecipientDetails
	Purpose          string
	Reference        string
}

// Orchestrator is the engine facade: quote issuance, payment intake
// and pipeline kickoff, cancellation, and lookups.
type Orchestrator struct {
	calculator *quote.Calculator
	quotes     storage.QuoteStore
	payments   storage.PaymentStore
	selector   *rail.Selector
	runner     *pipeline.Runner
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time
}

// New wires the orchestrator.
func New(
	calculator *quote.Calculator,
	quotes storage.QuoteStore,
	payments storage.PaymentStore,
	selector *rail.Selector,
	runner *pipeline.Runner,
	opts Options,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		calculator: calculator,
		quotes:     quotes,
		payments:   payments,
		selector:   selector,
		runner:     runner,
		opts:       opts,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		now:        time.Now,
	}
}

// RequestQuote prices a transfer and persists the quote. Persistence is
// best-effort: pricing is pure and the caller still gets a usable quote
// when the store is down, it just cannot be redeemed later.
func (o *Orchestrator) RequestQuote(ctx context.Context, req quote.Request) (quote.Quote, error) {
	q, err := o.calculator.Price(ctx, req)
	if err != nil {
		return quote.Quote{}, err
	}

	if err := o.quotes.CreateQuote(ctx, q); err != nil {
		o.logger.Warn().Err(err).Str("quote_id", q.ID).Msg("报价未能持久化, 仅返回给调用方")
	}

	o.logger.Info().
		Str("quote_id", q.ID).
		Str("corridor", q.Corridor).
		Str("input", q.InputAmount.StringFixed(2)).
		Str("output", q.OutputAmount.StringFixed(2)).
		Msg("quote issued")
	return q, nil
}

// ProcessPayment validates the quote, selects a rail, records the
// payment and starts the settlement pipeline.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req SendRequest) (*payment.Payment, error) {
	if req.RecipientDetails.Name == "" {
		return nil, fmt.Errorf("recipient name is required")
	}
	if req.RecipientDetails.BankAccount == "" {
		return nil, fmt.Errorf("recipient bank account is required")
	}

	q, err := o.quotes.GetQuote(ctx, req.QuoteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, req.QuoteID)
		}
		return nil, fmt.Errorf("load quote: %w", err)
	}
	if q.Expired(o.now().UTC()) {
		return nil, fmt.Errorf("%w: valid until %s", ErrQuoteExpired, q.ValidUntil.Format(time.RFC3339))
	}

	used, err := o.payments.HasActivePaymentForQuote(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("check quote usage: %w", err)
	}
	if used {
		return nil, fmt.Errorf("%w: %s", ErrQuoteAlreadyUsed, q.ID)
	}

	selection, err := o.selector.Select(rail.Requirements{
		Amount:             q.InputAmount,
		FromCurrency:       q.InputCurrency,
		ToCurrency:         q.OutputCurrency,
		FromRegion:         regionForCurrency(q.InputCurrency),
		ToRegion:           regionForCurrency(q.OutputCurrency),
		ComplianceRequired: q.ComplianceRequired,
		Priority:           o.opts.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("select rail for %s: %w", q.Corridor, err)
	}

	now := o.now().UTC()
	p := &payment.Payment{
		ID:      uuid.NewString(),
		QuoteID: q.ID,
		Request: payment.Request{
			SenderID:         req.SenderID,
			RecipientID:      req.RecipientID,
			AmountUSD:        q.InputAmount,
			FromCurrency:     q.InputCurrency,
			ToCurrency:       q.OutputCurrency,
			RecipientDetails: req.RecipientDetails,
			Purpose:          req.Purpose,
			Reference:        req.Reference,
		},
		Fees:                    q.Fees,
		Status:                  payment.StatusCreated,
		RailID:                  selection.Primary.ID,
		RailName:                selection.Primary.Name,
		CreatedAt:               now,
		UpdatedAt:               now,
		EstimatedCompletionTime: q.EstimatedTime,
	}
	if selection.Fallback != nil {
		p.FallbackRailID = selection.Fallback.ID
	}

	initiate := payment.NewStep(payment.StepInitiate, payment.StepCompleted)
	initiate.Details = fmt.Sprintf("payment accepted, rail %s", selection.Primary.Name)
	p.Steps = p.Steps.Upsert(initiate)

	if err := o.payments.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	o.logger.Info().
		Str("payment_id", p.ID).
		Str("quote_id", q.ID).
		Str("rail", selection.Primary.ID).
		Str("corridor", q.Corridor).
		Msg("payment created")

	if o.opts.Synchronous {
		if err := o.runner.Execute(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("run pipeline: %w", err)
		}
		return o.GetPayment(ctx, p.ID)
	}

	if err := o.runner.Start(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}
	return p, nil
}

// GetPayment loads a payment by id.
func (o *Orchestrator) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := o.payments.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// Cancel marks a payment CANCELLED if funds movement has not started.
// The running pipeline observes the status between steps and stops.
func (o *Orchestrator) Cancel(ctx context.Context, id, reason string) (*payment.Payment, error) {
	p, err := o.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.Cancellable() {
		return nil, fmt.Errorf("%w: status %s", ErrCancellationNotAllowed, p.Status)
	}

	if reason == "" {
		reason = "cancelled by sender"
	}
	if err := o.payments.UpdateStatus(ctx, id, payment.StatusCancelled, reason); err != nil {
		return nil, fmt.Errorf("cancel payment: %w", err)
	}

	o.logger.Info().Str("payment_id", id).Str("previous_status", string(p.Status)).Msg("payment cancelled")
	return o.GetPayment(ctx, id)
}

// regionForCurrency maps a currency to the coarse region used for rail
// filtering. Unknown currencies fall back to the wildcard region so
// global rails stay eligible.
func regionForCurrency(currency string) string {
	switch currency {
	case "USD", "CAD":
		return "North America"
	case "EUR", "GBP":
		return "Europe"
	case "MXN", "BRL", "COP":
		return "LATAM"
	default:
		return rail.GlobalRegion
	}
}
