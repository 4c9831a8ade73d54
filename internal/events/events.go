package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"remit-rails/internal/payment"
)

// StatusEvent announces one payment status transition.
type StatusEvent struct {
	PaymentID  string          `json:"payment_id"`
	QuoteID    string          `json:"quote_id"`
	Status     payment.Status  `json:"status"`
	Step       string          `json:"step,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	AmountUSD  decimal.Decimal `json:"amount_usd"`
	Corridor   string          `json:"corridor"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers payment status events to downstream consumers
// (notification service, analytics). Delivery is best-effort: a
// publish failure must never fail a payment.
type Publisher interface {
	PublishStatus(ctx context.Context, event StatusEvent) error
	Close() error
}

// NoopPublisher drops events when the event stream is disabled.
type NoopPublisher struct {
	logger zerolog.Logger
}

// NewNoopPublisher builds the disabled publisher.
func NewNoopPublisher(logger zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.With().Str("component", "events_noop").Logger()}
}

// PublishStatus logs and drops the event.
func (p *NoopPublisher) PublishStatus(_ context.Context, event StatusEvent) error {
	p.logger.Debug().Str("payment_id", event.PaymentID).Str("status", string(event.Status)).Msg("event stream disabled, event dropped")
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error { return nil }

var _ Publisher = (*NoopPublisher)(nil)
