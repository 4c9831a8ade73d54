package rates

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LatestRateReader reads the most recent persisted rate for a corridor.
type LatestRateReader interface {
	LatestCorridorRate(ctx context.Context, corridor string) (decimal.Decimal, time.Time, error)
}

// StoredSource prefers the freshest persisted sample and falls back to
// a secondary source when the sample is missing or stale.
type StoredSource struct {
	reader   LatestRateReader
	fallback Source
	maxAge   time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStoredSource wires a rate store in front of a fallback source.
func NewStoredSource(reader LatestRateReader, fallback Source, maxAge time.Duration, logger zerolog.Logger) *StoredSource {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &StoredSource{
		reader:   reader,
		fallback: fallback,
		maxAge:   maxAge,
		logger:   logger.With().Str("component", "rates_stored").Logger(),
		now:      time.Now,
	}
}

// Rate returns the persisted rate when fresh enough, otherwise defers
// to the fallback source.
func (s *StoredSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	corridor := Corridor(from, to)

	if s.reader != nil {
		rate, sampledAt, err := s.reader.LatestCorridorRate(ctx, corridor)
		switch {
		case err == nil && s.now().Sub(sampledAt) <= s.maxAge:
			return rate, nil
		case err == nil:
			s.logger.Debug().Str("corridor", corridor).Time("sampled_at", sampledAt).Msg("persisted rate stale, using fallback")
		case !errors.Is(err, ErrRateUnavailable):
			s.logger.Warn().Err(err).Str("corridor", corridor).Msg("rate store lookup failed, using fallback")
		}
	}

	if s.fallback == nil {
		return decimal.Decimal{}, ErrRateUnavailable
	}
	return s.fallback.Rate(ctx, from, to)
}

var _ Source = (*StoredSource)(nil)
