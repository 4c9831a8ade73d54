package rail

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoSuitableRail indicates no catalog rail satisfies the hard constraints.
var ErrNoSuitableRail = errors.New("no suitable rail for requirements")

// Priority selects the scoring dimension.
type Priority string

const (
	PriorityCost        Priority = "cost"
	PrioritySpeed       Priority = "speed"
	PriorityReliability Priority = "reliability"
)

// Requirements are the hard and soft constraints for rail selection.
type Requirements struct {
	Amount             decimal.Decimal
	FromCurrency       string
	ToCurrency         string
	FromRegion         string
	ToRegion           string
	ComplianceRequired bool
	Priority           Priority
}

// Selection holds the chosen primary rail and optional fallback.
type Selection struct {
	Primary  Rail
	Fallback *Rail
}

// Selector scores catalog rails against requirements. Selection is a
// pure, deterministic function of its inputs: quoting and processing
// must pick the same rail for the same requirements.
type Selector struct {
	catalog []Rail
}

// NewSelector builds a selector over the given catalog.
func NewSelector(catalog []Rail) *Selector {
	return &Selector{catalog: catalog}
}

// Select filters the catalog by hard constraints, scores survivors by
// the requested priority, and returns the top rail plus a fallback.
// Ties break by rail id in ascending lexical order.
func (s *Selector) Select(req Requirements) (Selection, error) {
	survivors := make([]Rail, 0, len(s.catalog))
	for _, r := range s.catalog {
		if r.MaxAmount.LessThan(req.Amount) {
			continue
		}
		if !r.supportsCurrency(req.FromCurrency) {
			continue
		}
		if !r.supportsRegion(req.FromRegion) {
			continue
		}
		if req.ComplianceRequired && !(r.Compliance.AML && r.Compliance.KYC) {
			continue
		}
		survivors = append(survivors, r)
	}

	if len(survivors) == 0 {
		return Selection{}, ErrNoSuitableRail
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityCost
	}

	sort.Slice(survivors, func(i, j int) bool {
		si, sj := score(survivors[i], priority), score(survivors[j], priority)
		if si != sj {
			return si > sj
		}
		return survivors[i].ID < survivors[j].ID
	})

	selection := Selection{Primary: survivors[0]}
	if len(survivors) > 1 {
		fallback := survivors[1]
		selection.Fallback = &fallback
	}
	return selection, nil
}

// maxCatalogCostPct normalises cost scores; the most expensive rail in
// the default catalog sits at 2%.
const maxCatalogCostPct = 0.02

func score(r Rail, priority Priority) float64 {
	switch priority {
	case PrioritySpeed:
		base := 70.0
		if r.SettlementTime > time.Minute {
			base = 70.0 * float64(time.Minute) / float64(r.SettlementTime)
		}
		return base + 30.0*r.Reliability
	case PriorityReliability:
		redundancy := 10.0 * float64(r.ProviderCount)
		if redundancy > 30 {
			redundancy = 30
		}
		return 70.0*r.Reliability + redundancy
	default: // cost
		cost := 70.0 * (1.0 - r.CostPercentage/maxCatalogCostPct)
		if cost < 0 {
			cost = 0
		}
		bonus := 0.0
		if r.SettlementTime <= time.Minute {
			bonus = 10.0
		}
		return cost + 20.0*r.Reliability + bonus
	}
}
