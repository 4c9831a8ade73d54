package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"remit-rails/internal/rates"
	"remit-rails/internal/scheduler"
	"remit-rails/internal/storage"
)

// Sampler periodically reads corridor FX rates from an upstream source
// and persists them, so quoting can serve from recent local data
// instead of a synchronous upstream call.
type Sampler struct {
	scheduler *scheduler.Scheduler
	source    rates.Source
	store     storage.RateStore
	logger    zerolog.Logger

	corridors  []string
	sourceName string
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// Options configure the sampling loop.
type Options struct {
	Corridors  []string
	SourceName string
	// AdvisoryLockKey serialises sampling across replicas sharing one
	// database. Zero disables locking.
	AdvisoryLockKey int64
}

// New constructs the sampler. The store may also implement
// AdvisoryLocker; if it does and a lock key is set, only one replica
// samples per interval.
func New(sched *scheduler.Scheduler, source rates.Source, store storage.RateStore, opts Options, logger zerolog.Logger) *Sampler {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	sourceName := opts.SourceName
	if sourceName == "" {
		sourceName = "upstream"
	}

	return &Sampler{
		scheduler:  sched,
		source:     source,
		store:      store,
		logger:     logger.With().Str("component", "sampler").Logger(),
		corridors:  opts.Corridors,
		sourceName: sourceName,
		locker:     locker,
		lockKey:    opts.AdvisoryLockKey,
	}
}

// Run begins the aligned sampling loop.
func (s *Sampler) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.corridors) == 0 {
		return fmt.Errorf("no corridors configured for sampling")
	}
	return s.scheduler.Run(ctx, s.SampleBucket)
}

// SampleBucket 执行单个时间桶的走廊汇率采样。
func (s *Sampler) SampleBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	var firstErr error
	for _, corridor := range s.corridors {
		if err := s.sampleCorridor(ctx, corridor, bucket); err != nil {
			s.logger.Error().Err(err).Str("corridor", corridor).Time("bucket", bucket).Msg("corridor sample failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Sampler) sampleCorridor(ctx context.Context, corridor string, bucket time.Time) error {
	from, to, err := rates.SplitCorridor(corridor)
	if err != nil {
		return err
	}

	rate, err := s.source.Rate(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch rate for %s: %w", corridor, err)
	}
	if rate.Sign() <= 0 {
		return fmt.Errorf("rate for %s is not positive: %s", corridor, rate)
	}

	sample := storage.CorridorRateSample{
		Corridor:  rates.Corridor(from, to),
		Bucket:    bucket,
		Rate:      rate,
		Source:    s.sourceName,
		CreatedAt: time.Now().UTC(),
	}
	if s.store != nil {
		if err := s.store.UpsertCorridorRate(ctx, sample); err != nil {
			return fmt.Errorf("persist sample for %s: %w", corridor, err)
		}
	}

	s.logger.Info().
		Str("corridor", sample.Corridor).
		Str("rate", rate.String()).
		Time("bucket", bucket).
		Msg("corridor rate sampled")
	return nil
}

func (s *Sampler) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
