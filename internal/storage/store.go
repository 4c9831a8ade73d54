package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
	"remit-rails/internal/config"
	"remit-rails/internal/payment"
	"remit-rails/internal/quote"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// QuoteStore persists issued quotes. Quotes are immutable; they expire
// logically at valid_until and are never deleted.
type QuoteStore interface {
	CreateQuote(ctx context.Context, q quote.Quote) error
	GetQuote(ctx context.Context, id string) (quote.Quote, error)
}

// PaymentStore persists payments and their step progress. It is the
// single source of truth for concurrent readers while a pipeline runs.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	UpsertStep(ctx context.Context, paymentID string, step payment.Step) error
	UpdateStatus(ctx context.Context, paymentID string, status payment.Status, reason string) error
	SetCompliance(ctx context.Context, paymentID string, result compliance.Result) error
	HasActivePaymentForQuote(ctx context.Context, quoteID string) (bool, error)
	ListRecentPayments(ctx context.Context, limit int) ([]payment.Payment, error)
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]payment.Payment, error)
}

// CorridorRateSample is one persisted corridor rate observation.
type CorridorRateSample struct {
	Corridor  string
	Bucket    time.Time
	Rate      decimal.Decimal
	Source    string
	CreatedAt time.Time
}

// RateStore persists sampled corridor rates.
type RateStore interface {
	UpsertCorridorRate(ctx context.Context, sample CorridorRateSample) error
	LatestCorridorRate(ctx context.Context, corridor string) (decimal.Decimal, time.Time, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
