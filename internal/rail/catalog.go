package rail

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCatalog returns the static rail catalog.
func DefaultCatalog() []Rail {
	return []Rail{
		{
			ID:                  "circle-usdc",
			Name:                "Circle USDC",
			Type:                TypeHybrid,
			CostPercentage:      0.001,
			SettlementTime:      30 * time.Second,
			MaxAmount:           decimal.NewFromInt(1_000_000),
			SupportedCurrencies: []string{"USD", "EUR"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true, Sanctions: true},
			Reliability:         0.995,
			ProviderCount:       3,
		},
		{
			ID:                  "polygon-usdc",
			Name:                "Polygon USDC",
			Type:                TypeBlockchain,
			CostPercentage:      0.0005,
			SettlementTime:      10 * time.Second,
			MaxAmount:           decimal.NewFromInt(500_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: false, KYC: false, Sanctions: true},
			Reliability:         0.99,
			ProviderCount:       1,
		},
		{
			ID:                  "stellar-anchor",
			Name:                "Stellar Anchor Network",
			Type:                TypeBlockchain,
			CostPercentage:      0.002,
			SettlementTime:      5 * time.Second,
			MaxAmount:           decimal.NewFromInt(100_000),
			SupportedCurrencies: []string{"USD", "EUR", "NGN", "PHP"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true, Sanctions: false},
			Reliability:         0.98,
			ProviderCount:       2,
		},
		{
			ID:                  "swift-wire",
			Name:                "SWIFT Wire",
			Type:                TypeTraditional,
			CostPercentage:      0.02,
			SettlementTime:      48 * time.Hour,
			MaxAmount:           decimal.NewFromInt(10_000_000),
			SupportedCurrencies: []string{"USD", "EUR", "GBP", "JPY", "MXN", "INR"},
			SupportedRegions:    []string{GlobalRegion},
			Compliance:          ComplianceTier{AML: true, KYC: true, Sanctions: true},
			Reliability:         0.999,
			ProviderCount:       4,
		},
		{
			ID:                  "visa-direct",
			Name:                "Visa Direct",
			Type:                TypeTraditional,
			CostPercentage:      0.012,
			SettlementTime:      30 * time.Minute,
			MaxAmount:           decimal.NewFromInt(50_000),
			SupportedCurrencies: []string{"USD", "EUR", "MXN", "PHP"},
			SupportedRegions:    []string{"North America", "Europe", "LATAM"},
			Compliance:          ComplianceTier{AML: true, KYC: true, Sanctions: true},
			Reliability:         0.997,
			ProviderCount:       2,
		},
		{
			ID:                  "local-ach",
			Name:                "Domestic ACH",
			Type:                TypeTraditional,
			CostPercentage:      0.005,
			SettlementTime:      24 * time.Hour,
			MaxAmount:           decimal.NewFromInt(25_000),
			SupportedCurrencies: []string{"USD"},
			SupportedRegions:    []string{"North America"},
			Compliance:          ComplianceTier{AML: true, KYC: false, Sanctions: false},
			Reliability:         0.992,
			ProviderCount:       1,
		},
	}
}
