package rail

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type distinguishes settlement rail families.
type Type string

const (
	TypeTraditional Type = "traditional"
	TypeBlockchain  Type = "blockchain"
	TypeHybrid      Type = "hybrid"
)

// ComplianceTier declares which screenings a rail supports.
type ComplianceTier struct {
	AML       bool
	KYC       bool
	Sanctions bool
}

// Rail describes one settlement path. Immutable, statically configured.
type Rail struct {
	ID                  string
	Name                string
	Type                Type
	CostPercentage      float64
	SettlementTime      time.Duration
	MaxAmount           decimal.Decimal
	SupportedCurrencies []string
	SupportedRegions    []string
	Compliance          ComplianceTier
	Reliability         float64 // declared availability, 0..1
	ProviderCount       int     // underlying providers (redundancy)
}

// GlobalRegion is the wildcard region accepted by any corridor.
const GlobalRegion = "Global"

func (r Rail) supportsCurrency(currency string) bool {
	for _, c := range r.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

func (r Rail) supportsRegion(region string) bool {
	for _, reg := range r.SupportedRegions {
		if reg == GlobalRegion || reg == region {
			return true
		}
	}
	return false
}
