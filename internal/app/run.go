package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"remit-rails/internal/rates"
	"remit-rails/internal/sampler"
	"remit-rails/internal/scheduler"
	"remit-rails/internal/storage"
)

// Run executes the long-running corridor rate sampler. Sampled rates
// feed quote pricing through the stored rate source.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; sampled rates will not persist")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Sampler.Interval,
		AlignToStart:   a.Config.Sampler.AlignToBucket,
		StartupDelay:   a.Config.Sampler.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	// The sampler reads the upstream source directly; reading back
	// through the stored source would short-circuit sampling.
	var upstream rates.Source = rates.NewStaticTable(a.Config.Rates.Static)
	sourceName := "static"
	if a.Config.Rates.BaseURL != "" {
		upstream = rates.NewHTTPSource(rates.HTTPOptions{
			BaseURL:   a.Config.Rates.BaseURL,
			Timeout:   a.Config.Rates.RequestTimeout,
			UserAgent: a.Config.Rates.UserAgent,
		}, a.Logger)
		sourceName = a.Config.Rates.BaseURL
	}

	var rateStore storage.RateStore
	if store != nil {
		rateStore = store
	}

	svc := sampler.New(sched, upstream, rateStore, sampler.Options{
		Corridors:       a.Config.Rates.Corridors,
		SourceName:      sourceName,
		AdvisoryLockKey: a.Config.Sampler.AdvisoryLockKey,
	}, a.Logger)

	a.Logger.Info().Strs("corridors", a.Config.Rates.Corridors).Msg("starting corridor rate sampler")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("sampler terminated with error")
		return err
	}

	a.Logger.Info().Msg("corridor rate sampler stopped")
	return nil
}
