package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remit-rails/internal/compliance"
	"remit-rails/internal/payment"
	"remit-rails/internal/provider"
	"remit-rails/internal/quote"
	"remit-rails/internal/storage"
)

func newTestPayment(t *testing.T, store storage.PaymentStore) *payment.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := &payment.Payment{
		ID:      uuid.NewString(),
		QuoteID: uuid.NewString(),
		Request: payment.Request{
			SenderID:     "sender-1",
			RecipientID:  "recipient-1",
			AmountUSD:    decimal.NewFromInt(100),
			FromCurrency: "USD",
			ToCurrency:   "MXN",
			RecipientDetails: payment.RecipientDetails{
				Name:        "Maria Lopez",
				Address:     "0x0000000000000000000000000000000000000001",
				BankAccount: "012345678901234567",
			},
		},
		Fees: quote.Fees{
			PlatformFee: decimal.NewFromFloat(1.50),
			NetworkFee:  decimal.NewFromFloat(0.01),
			Total:       decimal.NewFromFloat(1.51),
		},
		Status:    payment.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	initiate := payment.NewStep(payment.StepInitiate, payment.StepCompleted)
	initiate.Details = "payment accepted"
	p.Steps = p.Steps.Upsert(initiate)

	require.NoError(t, store.CreatePayment(context.Background(), p))
	return p
}

func newTestRunner(store storage.PaymentStore, sim *provider.Simulated) *Runner {
	return NewRunner(
		store,
		sim.Providers(),
		sim,
		sim,
		compliance.NewAggregator(0.4, 0.6),
		nil,
		zerolog.Nop(),
	)
}

func TestPipelineHappyPath(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{}
	runner := newTestRunner(store, sim)
	p := newTestPayment(t, store)

	require.NoError(t, runner.Execute(context.Background(), p.ID))

	got, err := store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.FailureReason)

	require.Len(t, got.Steps, len(payment.StepOrder))
	for i, name := range payment.StepOrder {
		assert.Equal(t, name, got.Steps[i].Name)
		assert.Equal(t, payment.StepCompleted, got.Steps[i].Status, "step %s", name)
	}

	transfer, ok := got.Steps.Get(string(payment.StepBlockchainTransfer))
	require.True(t, ok)
	assert.NotEmpty(t, transfer.TxHash, "链上转账步骤应记录交易哈希")

	require.NotNil(t, got.Compliance)
	assert.Equal(t, compliance.RecommendationApprove, got.Compliance.Recommendation)
}

// A step injected to fail at position k leaves exactly k-1 prior steps
// completed, step k failed with a non-empty error, and nothing after.
func TestPipelineFailureContainment(t *testing.T) {
	cases := []struct {
		name     string
		failStep payment.StepName
		inject   func(*provider.Simulated)
	}{
		{
			name:     "on-ramp failure",
			failStep: payment.StepUSDToUSDC,
			inject:   func(s *provider.Simulated) { s.FailOnRamp = errors.New("liquidity exhausted") },
		},
		{
			name:     "chain transfer failure",
			failStep: payment.StepBlockchainTransfer,
			inject:   func(s *provider.Simulated) { s.FailTransfer = errors.New("rpc timeout") },
		},
		{
			name:     "off-ramp failure",
			failStep: payment.StepUSDCToLocal,
			inject:   func(s *provider.Simulated) { s.FailOffRamp = errors.New("partner rejected") },
		},
		{
			name:     "bank settlement failure",
			failStep: payment.StepBankTransfer,
			inject:   func(s *provider.Simulated) { s.FailSettle = errors.New("account closed") },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemory()
			sim := &provider.Simulated{}
			tc.inject(sim)
			runner := newTestRunner(store, sim)
			p := newTestPayment(t, store)

			require.NoError(t, runner.Execute(context.Background(), p.ID))

			got, err := store.GetPayment(context.Background(), p.ID)
			require.NoError(t, err)

			assert.Equal(t, payment.StatusFailed, got.Status)
			assert.Contains(t, got.FailureReason, string(tc.failStep))
			assert.Nil(t, got.CompletedAt)

			failPos := payment.StepPosition(tc.failStep)
			require.Len(t, got.Steps, failPos+1, "失败步骤之后不应再记录任何步骤")

			for i := 0; i < failPos; i++ {
				assert.Equal(t, payment.StepCompleted, got.Steps[i].Status, "prior step %s must stay completed", got.Steps[i].Name)
			}

			failed := got.Steps[failPos]
			assert.Equal(t, tc.failStep, failed.Name)
			assert.Equal(t, payment.StepFailed, failed.Status)
			assert.NotEmpty(t, failed.ErrorMessage)
		})
	}
}

func TestPipelineComplianceReject(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{
		RiskResult: &compliance.Result{
			RiskLevel:      compliance.RiskHigh,
			RiskScore:      95,
			Recommendation: compliance.RecommendationReject,
			Flags:          []string{"sanctions_hit"},
		},
	}
	runner := newTestRunner(store, sim)
	p := newTestPayment(t, store)

	require.NoError(t, runner.Execute(context.Background(), p.ID))

	got, err := store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "compliance rejected")
	assert.Contains(t, got.FailureReason, "sanctions_hit")

	screen, ok := got.Steps.Get(string(payment.StepComplianceScreen))
	require.True(t, ok)
	assert.Equal(t, payment.StepFailed, screen.Status)

	// No funds movement may be attempted after a reject.
	_, moved := got.Steps.Get(string(payment.StepUSDToUSDC))
	assert.False(t, moved)
}

func TestPipelineReviewParksPayment(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{
		IdentityResult: &compliance.Result{
			RiskLevel:      compliance.RiskMedium,
			RiskScore:      55,
			Recommendation: compliance.RecommendationReview,
			Flags:          []string{"document_mismatch"},
		},
	}
	runner := newTestRunner(store, sim)
	p := newTestPayment(t, store)

	require.NoError(t, runner.Execute(context.Background(), p.ID))

	got, err := store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)

	// review 结果必须进入人工处理状态, 而不是继续结算。
	assert.Equal(t, payment.StatusKYCPending, got.Status)
	assert.False(t, got.Status.Terminal())
	assert.True(t, got.Status.Cancellable())

	_, moved := got.Steps.Get(string(payment.StepUSDToUSDC))
	assert.False(t, moved, "manual review must not proceed to settlement")
}

func TestPipelineScreenerErrorFailsPayment(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{FailRisk: errors.New("vendor unavailable")}
	runner := newTestRunner(store, sim)
	p := newTestPayment(t, store)

	require.NoError(t, runner.Execute(context.Background(), p.ID))

	got, err := store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "vendor unavailable")
}

func TestPipelineCancelledBetweenSteps(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{}
	p := newTestPayment(t, store)

	// Cancel mid-screen: the wrapper marks the payment CANCELLED before
	// returning a clean risk result, so the pipeline sees the cancel
	// exactly between compliance and funds movement.
	cancelling := &cancellingRisk{inner: sim, store: store, paymentID: p.ID}
	runner := NewRunner(store, sim.Providers(), sim, cancelling, compliance.NewAggregator(0.4, 0.6), nil, zerolog.Nop())

	require.NoError(t, runner.Execute(context.Background(), p.ID))

	got, err := store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusCancelled, got.Status)

	onramp, ok := got.Steps.Get(string(payment.StepUSDToUSDC))
	require.True(t, ok)
	assert.Equal(t, payment.StepSkipped, onramp.Status, "取消后的资金步骤应标记为 skipped")
	_, moved := got.Steps.Get(string(payment.StepBlockchainTransfer))
	assert.False(t, moved)
}

type cancellingRisk struct {
	inner     compliance.RiskScreener
	store     storage.PaymentStore
	paymentID string
}

func (c *cancellingRisk) ScreenRisk(ctx context.Context, req compliance.RiskRequest) (compliance.Result, error) {
	if err := c.store.UpdateStatus(ctx, c.paymentID, payment.StatusCancelled, "cancelled by sender"); err != nil {
		return compliance.Result{}, err
	}
	return c.inner.ScreenRisk(ctx, req)
}

func TestPipelineRejectsConcurrentInstance(t *testing.T) {
	store := storage.NewMemory()
	sim := &provider.Simulated{}
	runner := newTestRunner(store, sim)
	p := newTestPayment(t, store)

	require.NoError(t, runner.Reserve(p.ID))
	defer runner.release(p.ID)

	err := runner.Execute(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}
