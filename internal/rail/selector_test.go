package rail

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func testCatalog() []Rail {
	return []Rail{
		{
			ID: "cheap-slow", Name: "Cheap Slow", Type: TypeTraditional,
			CostPercentage: 0.002, SettlementTime: 24 * time.Hour,
			MaxAmount:           decimal.NewFromInt(100_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true},
			Reliability:         0.99, ProviderCount: 2,
		},
		{
			ID: "fast-pricey", Name: "Fast Pricey", Type: TypeBlockchain,
			CostPercentage: 0.015, SettlementTime: 10 * time.Second,
			MaxAmount:           decimal.NewFromInt(50_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true},
			Reliability:         0.98, ProviderCount: 1,
		},
		{
			ID: "no-kyc", Name: "No KYC", Type: TypeBlockchain,
			CostPercentage: 0.0001, SettlementTime: 5 * time.Second,
			MaxAmount:           decimal.NewFromInt(1_000_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: false, KYC: false},
			Reliability:         0.97, ProviderCount: 1,
		},
	}
}

func TestSelectFiltersByMaxAmount(t *testing.T) {
	sel := NewSelector(testCatalog())

	got, err := sel.Select(Requirements{
		Amount:       decimal.NewFromInt(60_000),
		FromCurrency: "USD",
		FromRegion:   "North America",
		Priority:     PrioritySpeed,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// fast-pricey caps at 50k; it must be excluded even though speed wins.
	if got.Primary.ID == "fast-pricey" {
		t.Fatalf("容量不足的 rail 不应被选中: %s", got.Primary.ID)
	}
}

func TestSelectComplianceFilter(t *testing.T) {
	catalog := []Rail{
		{
			ID: "only-option", Name: "Only Option", Type: TypeBlockchain,
			CostPercentage: 0.001, SettlementTime: time.Second,
			MaxAmount:           decimal.NewFromInt(100_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: false},
			Reliability:         0.99, ProviderCount: 1,
		},
	}
	sel := NewSelector(catalog)

	_, err := sel.Select(Requirements{
		Amount:             decimal.NewFromInt(5000),
		FromCurrency:       "USD",
		FromRegion:         "Europe",
		ComplianceRequired: true,
		Priority:           PriorityCost,
	})
	if !errors.Is(err, ErrNoSuitableRail) {
		t.Fatalf("唯一 rail 缺少 KYC 时应返回 ErrNoSuitableRail, 实际 %v", err)
	}
}

func TestSelectUnsupportedCurrency(t *testing.T) {
	sel := NewSelector(testCatalog())
	_, err := sel.Select(Requirements{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "JPY",
		FromRegion:   GlobalRegion,
	})
	if !errors.Is(err, ErrNoSuitableRail) {
		t.Fatalf("expected ErrNoSuitableRail, got %v", err)
	}
}

func TestSelectPriorityOrdering(t *testing.T) {
	sel := NewSelector(testCatalog())
	req := Requirements{
		Amount:       decimal.NewFromInt(1000),
		FromCurrency: "USD",
		FromRegion:   "LATAM",
	}

	req.Priority = PriorityCost
	costSel, err := sel.Select(req)
	if err != nil {
		t.Fatalf("cost select: %v", err)
	}
	if costSel.Primary.ID != "no-kyc" {
		t.Fatalf("cost priority should pick the cheapest rail, got %s", costSel.Primary.ID)
	}

	req.Priority = PrioritySpeed
	speedSel, err := sel.Select(req)
	if err != nil {
		t.Fatalf("speed select: %v", err)
	}
	if speedSel.Primary.SettlementTime > time.Minute {
		t.Fatalf("speed priority picked a slow rail: %s", speedSel.Primary.ID)
	}

	req.Priority = PriorityReliability
	relSel, err := sel.Select(req)
	if err != nil {
		t.Fatalf("reliability select: %v", err)
	}
	if relSel.Primary.ID != "cheap-slow" {
		t.Fatalf("reliability priority should favour redundancy, got %s", relSel.Primary.ID)
	}
}

func TestSelectFallbackPresent(t *testing.T) {
	sel := NewSelector(testCatalog())
	got, err := sel.Select(Requirements{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		FromRegion:   GlobalRegion,
		Priority:     PriorityCost,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Fallback == nil {
		t.Fatal("多个候选时应返回 fallback")
	}
	if got.Fallback.ID == got.Primary.ID {
		t.Fatal("fallback 不应与 primary 相同")
	}
}

func TestSelectTieBreakByID(t *testing.T) {
	twin := func(id string) Rail {
		return Rail{
			ID: id, Name: id, Type: TypeTraditional,
			CostPercentage: 0.01, SettlementTime: time.Hour,
			MaxAmount:           decimal.NewFromInt(10_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true},
			Reliability:         0.9, ProviderCount: 1,
		}
	}
	sel := NewSelector([]Rail{twin("zeta"), twin("alpha")})

	got, err := sel.Select(Requirements{
		Amount:       decimal.NewFromInt(100),
		FromCurrency: "USD",
		FromRegion:   GlobalRegion,
		Priority:     PriorityCost,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Primary.ID != "alpha" {
		t.Fatalf("平分时应按 id 升序取胜, 实际 %s", got.Primary.ID)
	}
}

// Selection must be a pure, deterministic function of its inputs.
func TestSelectDeterministic(t *testing.T) {
	sel := NewSelector(DefaultCatalog())
	priorities := []Priority{PriorityCost, PrioritySpeed, PriorityReliability}

	rapid.Check(t, func(rt *rapid.T) {
		req := Requirements{
			Amount:             decimal.NewFromInt(rapid.Int64Range(1, 200_000).Draw(rt, "amount")),
			FromCurrency:       rapid.SampledFrom([]string{"USD", "EUR", "GBP", "XXX"}).Draw(rt, "currency"),
			FromRegion:         rapid.SampledFrom([]string{"North America", "Europe", "LATAM", "APAC"}).Draw(rt, "region"),
			ComplianceRequired: rapid.Bool().Draw(rt, "compliance"),
			Priority:           rapid.SampledFrom(priorities).Draw(rt, "priority"),
		}

		first, err1 := sel.Select(req)
		second, err2 := sel.Select(req)

		if (err1 == nil) != (err2 == nil) {
			rt.Fatalf("non-deterministic error: %v vs %v", err1, err2)
		}
		if err1 != nil {
			return
		}
		if first.Primary.ID != second.Primary.ID {
			rt.Fatalf("primary differs: %s vs %s", first.Primary.ID, second.Primary.ID)
		}
		if (first.Fallback == nil) != (second.Fallback == nil) {
			rt.Fatal("fallback presence differs")
		}
		if first.Fallback != nil && first.Fallback.ID != second.Fallback.ID {
			rt.Fatalf("fallback differs: %s vs %s", first.Fallback.ID, second.Fallback.ID)
		}
	})
}
