package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"remit-rails/internal/compliance"
	"remit-rails/internal/events"
	"remit-rails/internal/payment"
	"remit-rails/internal/provider"
	"remit-rails/internal/rates"
	"remit-rails/internal/storage"
)

var (
	// ErrAlreadyRunning rejects a second pipeline instance for one payment.
	ErrAlreadyRunning = errors.New("pipeline already running for payment")

	// ErrComplianceRejected halts the pipeline on a reject recommendation.
	ErrComplianceRejected = errors.New("compliance rejected")
	// ErrConversionFailed maps on/off-ramp failures.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrTransferFailed maps blockchain transfer failures.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrSettlementFailed maps destination settlement failures.
	ErrSettlementFailed = errors.New("settlement failed")
)

// Runner drives payments through the settlement pipeline. One goroutine
// per payment; steps within a payment are strictly sequential, and each
// step outcome is persisted before the next step starts.
type Runner struct {
	store      storage.PaymentStore
	settlement provider.Settlement
	identity   compliance.IdentityScreener
	risk       compliance.RiskScreener
	aggregator *compliance.Aggregator
	publisher  events.Publisher
	logger     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewRunner wires the pipeline's collaborators.
func NewRunner(
	store storage.PaymentStore,
	settlement provider.Settlement,
	identity compliance.IdentityScreener,
	risk compliance.RiskScreener,
	aggregator *compliance.Aggregator,
	publisher events.Publisher,
	logger zerolog.Logger,
) *Runner {
	if publisher == nil {
		publisher = events.NewNoopPublisher(logger)
	}
	return &Runner{
		store:      store,
		settlement: settlement,
		identity:   identity,
		risk:       risk,
		aggregator: aggregator,
		publisher:  publisher,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		inflight:   make(map[string]struct{}),
	}
}

// Reserve marks a payment id as in flight. At most one pipeline
// instance may hold a reservation for a given id.
func (r *Runner) Reserve(paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.inflight[paymentID]; running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, paymentID)
	}
	r.inflight[paymentID] = struct{}{}
	return nil
}

func (r *Runner) release(paymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, paymentID)
}

// Running reports whether a pipeline instance holds the id.
func (r *Runner) Running(paymentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, running := r.inflight[paymentID]
	return running
}

// Start reserves the payment id and launches the pipeline as a detached
// background task. The caller's context cancellation does not abort the
// pipeline; collaborator deadlines bound each call instead.
func (r *Runner) Start(ctx context.Context, paymentID string) error {
	if err := r.Reserve(paymentID); err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.release(paymentID)
		if err := r.run(detached, paymentID); err != nil {
			r.logger.Error().Err(err).Str("payment_id", paymentID).Msg("pipeline terminated with error")
		}
	}()
	return nil
}

// Execute runs the pipeline synchronously on the caller's goroutine,
// holding the reservation for the duration. Used by tests and the CLI
// send path where the process must outlive the pipeline anyway.
func (r *Runner) Execute(ctx context.Context, paymentID string) error {
	if err := r.Reserve(paymentID); err != nil {
		return err
	}
	defer r.release(paymentID)
	return r.run(ctx, paymentID)
}

func (r *Runner) run(ctx context.Context, paymentID string) error {
	p, err := r.store.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	if p.Status.Terminal() {
		r.logger.Warn().Str("payment_id", paymentID).Str("status", string(p.Status)).Msg("payment already terminal, nothing to run")
		return nil
	}

	logger := r.logger.With().Str("payment_id", paymentID).Logger()

	// COMPLIANCE_SCREEN
	if err := r.setStatus(ctx, p, payment.StatusComplianceReview, ""); err != nil {
		return err
	}
	proceed, err := r.runComplianceScreen(ctx, p, logger)
	if err != nil || !proceed {
		return err
	}

	// Cancellation is honored between steps, and only before funds
	// movement begins.
	cancelled, err := r.cancelledMeanwhile(ctx, paymentID)
	if err != nil {
		return err
	}
	if cancelled {
		step := payment.NewStep(payment.StepUSDToUSDC, payment.StepSkipped)
		step.Details = "payment cancelled before funds movement"
		if err := r.store.UpsertStep(ctx, paymentID, step); err != nil {
			return err
		}
		logger.Info().Msg("pipeline stopped: payment cancelled")
		return nil
	}

	stableAmount := p.Request.AmountUSD.Sub(p.Fees.Total)

	// USD_TO_USDC
	if err := r.setStatus(ctx, p, payment.StatusProcessing, ""); err != nil {
		return err
	}
	onRampReceipt, failed, err := r.runSettlementStep(ctx, p, payment.StepUSDToUSDC, ErrConversionFailed, func(callCtx context.Context) (provider.Receipt, error) {
		return r.settlement.OnRamp.ConvertFiatToStable(callCtx, p.Request.AmountUSD, p.Request.SenderID)
	})
	if failed || err != nil {
		return err
	}
	logger.Debug().Str("reference", onRampReceipt.Reference).Msg("fiat converted to stable value")

	// BLOCKCHAIN_TRANSFER
	if err := r.setStatus(ctx, p, payment.StatusBlockchainPending, ""); err != nil {
		return err
	}
	destination := p.Request.RecipientDetails.Address
	if _, failed, err = r.runSettlementStep(ctx, p, payment.StepBlockchainTransfer, ErrTransferFailed, func(callCtx context.Context) (provider.Receipt, error) {
		return r.settlement.Chain.TransferOnChain(callCtx, stableAmount, destination)
	}); failed || err != nil {
		return err
	}

	// USDC_TO_LOCAL
	if err := r.setStatus(ctx, p, payment.StatusConverting, ""); err != nil {
		return err
	}
	if _, failed, err = r.runSettlementStep(ctx, p, payment.StepUSDCToLocal, ErrConversionFailed, func(callCtx context.Context) (provider.Receipt, error) {
		return r.settlement.OffRamp.ConvertStableToFiat(callCtx, stableAmount, p.Request.RecipientDetails.BankAccount)
	}); failed || err != nil {
		return err
	}

	// BANK_TRANSFER
	if err := r.setStatus(ctx, p, payment.StatusSettling, ""); err != nil {
		return err
	}
	if _, failed, err = r.runSettlementStep(ctx, p, payment.StepBankTransfer, ErrSettlementFailed, func(callCtx context.Context) (provider.Receipt, error) {
		return r.settlement.Settler.SettleToBank(callCtx, stableAmount, p.Request.RecipientDetails.BankAccount)
	}); failed || err != nil {
		return err
	}

	// COMPLETE
	complete := payment.NewStep(payment.StepComplete, payment.StepCompleted)
	complete.Details = "all settlement steps completed"
	if err := r.store.UpsertStep(ctx, paymentID, complete); err != nil {
		return err
	}
	if err := r.setStatus(ctx, p, payment.StatusCompleted, ""); err != nil {
		return err
	}

	logger.Info().Msg("payment settled")
	return nil
}

// runComplianceScreen executes the COMPLIANCE_SCREEN step. It returns
// proceed=false when the pipeline must halt (reject or manual review).
func (r *Runner) runComplianceScreen(ctx context.Context, p *payment.Payment, logger zerolog.Logger) (bool, error) {
	corridor := rates.Corridor(p.Request.FromCurrency, p.Request.ToCurrency)

	identityRes, err := r.identity.ScreenIdentity(ctx, compliance.IdentityRequest{
		SenderID:      p.Request.SenderID,
		RecipientName: p.Request.RecipientDetails.Name,
		ToCurrency:    p.Request.ToCurrency,
	})
	if err != nil {
		return false, r.failStep(ctx, p, payment.StepComplianceScreen, fmt.Errorf("identity screen: %w", err))
	}

	amountUSD, _ := p.Request.AmountUSD.Float64()
	riskRes, err := r.risk.ScreenRisk(ctx, compliance.RiskRequest{
		SenderID:    p.Request.SenderID,
		RecipientID: p.Request.RecipientID,
		AmountUSD:   amountUSD,
		Corridor:    corridor,
		Purpose:     p.Request.Purpose,
	})
	if err != nil {
		return false, r.failStep(ctx, p, payment.StepComplianceScreen, fmt.Errorf("risk screen: %w", err))
	}

	combined := r.aggregator.Combine(identityRes, riskRes)
	if err := r.store.SetCompliance(ctx, p.ID, combined); err != nil {
		return false, err
	}

	switch combined.Recommendation {
	case compliance.RecommendationReject:
		err := fmt.Errorf("%w: %s", ErrComplianceRejected, describeFlags(combined))
		return false, r.failStep(ctx, p, payment.StepComplianceScreen, err)

	case compliance.RecommendationReview:
		step := payment.NewStep(payment.StepComplianceScreen, payment.StepCompleted)
		step.Details = "manual review required: " + describeFlags(combined)
		if err := r.store.UpsertStep(ctx, p.ID, step); err != nil {
			return false, err
		}
		if err := r.setStatus(ctx, p, payment.StatusKYCPending, "awaiting manual compliance review"); err != nil {
			return false, err
		}
		logger.Info().Float64("risk_score", combined.RiskScore).Msg("payment parked for manual review")
		return false, nil

	default:
		step := payment.NewStep(payment.StepComplianceScreen, payment.StepCompleted)
		step.Details = fmt.Sprintf("approved (risk score %.1f)", combined.RiskScore)
		if err := r.store.UpsertStep(ctx, p.ID, step); err != nil {
			return false, err
		}
		return true, nil
	}
}

// runSettlementStep executes one external settlement call and persists
// its outcome. failed=true means the payment is now terminal FAILED.
func (r *Runner) runSettlementStep(
	ctx context.Context,
	p *payment.Payment,
	name payment.StepName,
	class error,
	call func(ctx context.Context) (provider.Receipt, error),
) (provider.Receipt, bool, error) {
	receipt, err := call(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", class, err)
		return provider.Receipt{}, true, r.failStep(ctx, p, name, wrapped)
	}

	step := payment.NewStep(name, payment.StepCompleted)
	step.TxHash = receipt.TxHash
	if receipt.Reference != "" {
		step.Details = "reference " + receipt.Reference
	}
	if err := r.store.UpsertStep(ctx, p.ID, step); err != nil {
		return provider.Receipt{}, false, err
	}
	return receipt, false, nil
}

// failStep records the failing step and moves the payment to FAILED.
// Previously completed steps are never retracted, and no further step
// is attempted; retries require a new payment attempt.
func (r *Runner) failStep(ctx context.Context, p *payment.Payment, name payment.StepName, cause error) error {
	step := payment.NewStep(name, payment.StepFailed)
	step.ErrorMessage = cause.Error()
	if err := r.store.UpsertStep(ctx, p.ID, step); err != nil {
		return err
	}

	reason := fmt.Sprintf("step %s failed: %v", name, cause)
	if err := r.setStatus(ctx, p, payment.StatusFailed, reason); err != nil {
		return err
	}

	r.logger.Warn().Str("payment_id", p.ID).Str("step", string(name)).Err(cause).Msg("pipeline halted on step failure")
	return nil
}

func (r *Runner) setStatus(ctx context.Context, p *payment.Payment, status payment.Status, reason string) error {
	if err := r.store.UpdateStatus(ctx, p.ID, status, reason); err != nil {
		return fmt.Errorf("update status to %s: %w", status, err)
	}

	event := events.StatusEvent{
		PaymentID:  p.ID,
		QuoteID:    p.QuoteID,
		Status:     status,
		Reason:     reason,
		AmountUSD:  p.Request.AmountUSD,
		Corridor:   rates.Corridor(p.Request.FromCurrency, p.Request.ToCurrency),
		OccurredAt: time.Now().UTC(),
	}
	if err := r.publisher.PublishStatus(ctx, event); err != nil {
		// Event delivery is best-effort; the store remains the source of truth.
		r.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("failed to publish status event")
	}
	return nil
}

func (r *Runner) cancelledMeanwhile(ctx context.Context, paymentID string) (bool, error) {
	current, err := r.store.GetPayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("reload payment %s: %w", paymentID, err)
	}
	return current.Status == payment.StatusCancelled, nil
}

func describeFlags(result compliance.Result) string {
	if len(result.Flags) == 0 {
		return fmt.Sprintf("risk score %.1f", result.RiskScore)
	}
	return fmt.Sprintf("risk score %.1f, flags [%s]", result.RiskScore, strings.Join(result.Flags, ", "))
}
