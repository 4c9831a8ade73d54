package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remit-rails/internal/compliance"
	"remit-rails/internal/payment"
	"remit-rails/internal/pipeline"
	"remit-rails/internal/provider"
	"remit-rails/internal/quote"
	"remit-rails/internal/rail"
	"remit-rails/internal/rates"
	"remit-rails/internal/storage"
)

type fixture struct {
	store *storage.Memory
	sim   *provider.Simulated
	orch  *Orchestrator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	store := storage.NewMemory()
	sim := &provider.Simulated{}
	calculator := quote.NewCalculator(quote.Options{
		PlatformFeePct: decimal.NewFromFloat(0.015),
		NetworkFee:     decimal.NewFromFloat(0.01),
	}, rates.NewStaticTable(map[string]float64{
		"USD:MXN": 18.5,
		"USD:PHP": 56.0,
	}))
	runner := pipeline.NewRunner(
		store,
		sim.Providers(),
		sim,
		sim,
		compliance.NewAggregator(0.4, 0.6),
		nil,
		zerolog.Nop(),
	)

	return &fixture{
		store: store,
		sim:   sim,
		orch: New(
			calculator,
			store,
			store,
			rail.NewSelector(rail.DefaultCatalog()),
			runner,
			opts,
			zerolog.Nop(),
		),
	}
}

func sendRequest(quoteID string) SendRequest {
	return SendRequest{
		QuoteID:     quoteID,
		SenderID:    "sender-1",
		RecipientID: "recipient-1",
		RecipientDetails: payment.RecipientDetails{
			Name:        "Maria Lopez",
			Address:     "0x0000000000000000000000000000000000000001",
			BankAccount: "012345678901234567",
		},
		Purpose: "family support",
	}
}

func TestRequestQuotePersists(t *testing.T) {
	fx := newFixture(t, Options{})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "usd",
		ToCurrency:   "mxn",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD:MXN", q.Corridor)
	assert.Equal(t, "1822.07", q.OutputAmount.StringFixed(2))

	stored, err := fx.store.GetQuote(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, stored.ID)
}

// Quote issuance is pure pricing; a down store must not turn it into an error.
func TestRequestQuoteSurvivesStoreFailure(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.orch.quotes = brokenQuoteStore{}

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)
	assert.Equal(t, "1822.07", q.OutputAmount.StringFixed(2))
}

type brokenQuoteStore struct{}

func (brokenQuoteStore) CreateQuote(context.Context, quote.Quote) error {
	return errTest("connection refused")
}

func (brokenQuoteStore) GetQuote(context.Context, string) (quote.Quote, error) {
	return quote.Quote{}, errTest("connection refused")
}

func TestProcessPaymentEndToEnd(t *testing.T) {
	fx := newFixture(t, Options{Synchronous: true})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	p, err := fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.NoError(t, err)

	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, q.ID, p.QuoteID)
	assert.Equal(t, q.Fees.Total.StringFixed(2), p.Fees.Total.StringFixed(2), "手续费必须原样沿用报价")
	assert.NotEmpty(t, p.RailID)
	require.NotNil(t, p.CompletedAt)

	initiate, ok := p.Steps.Get(string(payment.StepInitiate))
	require.True(t, ok)
	assert.Equal(t, payment.StepCompleted, initiate.Status)
}

func TestProcessPaymentUnknownQuote(t *testing.T) {
	fx := newFixture(t, Options{})

	_, err := fx.orch.ProcessPayment(context.Background(), sendRequest("no-such-quote"))
	require.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestProcessPaymentExpiredQuote(t *testing.T) {
	fx := newFixture(t, Options{})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	fx.orch.now = func() time.Time { return q.ValidUntil.Add(time.Minute) }

	_, err = fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.ErrorIs(t, err, ErrQuoteExpired)
}

func TestProcessPaymentQuoteSingleUse(t *testing.T) {
	fx := newFixture(t, Options{Synchronous: true})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	_, err = fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.NoError(t, err)

	// 同一报价不允许再次发起支付。
	_, err = fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.ErrorIs(t, err, ErrQuoteAlreadyUsed)
}

func TestProcessPaymentQuoteReusableAfterFailure(t *testing.T) {
	fx := newFixture(t, Options{Synchronous: true})
	fx.sim.FailOnRamp = errTest("liquidity exhausted")

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	first, err := fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, first.Status)

	// A failed attempt releases the quote for a retry payment.
	fx.sim.FailOnRamp = nil
	second, err := fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, second.Status)
	assert.NotEqual(t, first.ID, second.ID)
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestCancelBeforeFundsMovement(t *testing.T) {
	fx := newFixture(t, Options{})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	// Create the payment record without starting the pipeline, so it
	// stays in CREATED.
	p := &payment.Payment{
		ID:        "pay-manual",
		QuoteID:   q.ID,
		Status:    payment.StatusCreated,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, fx.store.CreatePayment(context.Background(), p))

	got, err := fx.orch.Cancel(context.Background(), p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, got.Status)
	assert.Equal(t, "cancelled by sender", got.FailureReason)
}

func TestCancelAfterCompletionRejected(t *testing.T) {
	fx := newFixture(t, Options{Synchronous: true})

	q, err := fx.orch.RequestQuote(context.Background(), quote.Request{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		ToCurrency:   "MXN",
	})
	require.NoError(t, err)

	p, err := fx.orch.ProcessPayment(context.Background(), sendRequest(q.ID))
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, p.Status)

	_, err = fx.orch.Cancel(context.Background(), p.ID, "too late")
	require.ErrorIs(t, err, ErrCancellationNotAllowed)
}

func TestGetPaymentUnknown(t *testing.T) {
	fx := newFixture(t, Options{})
	_, err := fx.orch.GetPayment(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}
