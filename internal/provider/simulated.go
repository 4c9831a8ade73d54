package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
)

// Simulated implements every collaborator in-process with deterministic
// success, for the CLI send path and tests. Failure fields inject
// errors at specific seams.
type Simulated struct {
	Latency time.Duration

	FailOnRamp   error
	FailTransfer error
	FailOffRamp  error
	FailSettle   error

	IdentityResult *compliance.Result
	RiskResult     *compliance.Result
	FailIdentity   error
	FailRisk       error
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func reference(prefix string) string {
	return prefix + "-" + strings.Split(uuid.NewString(), "-")[0]
}

// ConvertFiatToStable simulates the fiat on-ramp.
func (s *Simulated) ConvertFiatToStable(ctx context.Context, amount decimal.Decimal, account string) (Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if s.FailOnRamp != nil {
		return Receipt{}, s.FailOnRamp
	}
	return Receipt{Reference: reference("onramp")}, nil
}

// TransferOnChain simulates the blockchain hop.
func (s *Simulated) TransferOnChain(ctx context.Context, amount decimal.Decimal, destination string) (Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if s.FailTransfer != nil {
		return Receipt{}, s.FailTransfer
	}
	hash := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Receipt{TxHash: "0x" + hash}, nil
}

// ConvertStableToFiat simulates the local off-ramp.
func (s *Simulated) ConvertStableToFiat(ctx context.Context, amount decimal.Decimal, account string) (Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if s.FailOffRamp != nil {
		return Receipt{}, s.FailOffRamp
	}
	return Receipt{Reference: reference("offramp")}, nil
}

// SettleToBank simulates destination settlement.
func (s *Simulated) SettleToBank(ctx context.Context, amount decimal.Decimal, bankAccount string) (Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if s.FailSettle != nil {
		return Receipt{}, s.FailSettle
	}
	return Receipt{Reference: reference("bank")}, nil
}

// ScreenIdentity returns the scripted identity result or a clean pass.
func (s *Simulated) ScreenIdentity(ctx context.Context, req compliance.IdentityRequest) (compliance.Result, error) {
	if err := s.wait(ctx); err != nil {
		return compliance.Result{}, err
	}
	if s.FailIdentity != nil {
		return compliance.Result{}, s.FailIdentity
	}
	if s.IdentityResult != nil {
		return *s.IdentityResult, nil
	}
	return compliance.Result{
		Success:        true,
		RiskLevel:      compliance.RiskLow,
		RiskScore:      10,
		Recommendation: compliance.RecommendationApprove,
		Details:        fmt.Sprintf("identity verified for sender %s", req.SenderID),
	}, nil
}

// ScreenRisk returns the scripted risk result or a clean pass.
func (s *Simulated) ScreenRisk(ctx context.Context, req compliance.RiskRequest) (compliance.Result, error) {
	if err := s.wait(ctx); err != nil {
		return compliance.Result{}, err
	}
	if s.FailRisk != nil {
		return compliance.Result{}, s.FailRisk
	}
	if s.RiskResult != nil {
		return *s.RiskResult, nil
	}
	return compliance.Result{
		Success:        true,
		RiskLevel:      compliance.RiskLow,
		RiskScore:      15,
		Recommendation: compliance.RecommendationApprove,
		Details:        fmt.Sprintf("risk screen clean for corridor %s", req.Corridor),
	}, nil
}

// Providers returns the settlement bundle backed by the simulator.
func (s *Simulated) Providers() Settlement {
	return Settlement{OnRamp: s, Chain: s, OffRamp: s, Settler: s}
}

var (
	_ StableOnRamp    = (*Simulated)(nil)
	_ ChainTransferor = (*Simulated)(nil)
	_ StableOffRamp   = (*Simulated)(nil)
	_ BankSettler     = (*Simulated)(nil)
)
