package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable indicates the source has no rate for the corridor.
var ErrRateUnavailable = errors.New("corridor rate unavailable")

// Source looks up the exchange rate for a directed currency pair.
type Source interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Corridor renders a directed pair as the canonical "FROM:TO" key.
func Corridor(from, to string) string {
	return strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// SplitCorridor parses a canonical corridor key.
func SplitCorridor(corridor string) (from, to string, err error) {
	parts := strings.SplitN(corridor, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid corridor %q", corridor)
	}
	return parts[0], parts[1], nil
}

// StaticTable serves rates from a fixed corridor map.
type StaticTable struct {
	rates map[string]decimal.Decimal
}

// NewStaticTable builds a table from config values.
func NewStaticTable(corridors map[string]float64) *StaticTable {
	rates := make(map[string]decimal.Decimal, len(corridors))
	for corridor, rate := range corridors {
		rates[strings.ToUpper(corridor)] = decimal.NewFromFloat(rate)
	}
	return &StaticTable{rates: rates}
}

// Rate returns the configured rate or ErrRateUnavailable.
func (t *StaticTable) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := t.rates[Corridor(from, to)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, Corridor(from, to))
	}
	return rate, nil
}

var _ Source = (*StaticTable)(nil)
