package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
	"remit-rails/internal/payment"
	"remit-rails/internal/quote"
	"remit-rails/internal/rates"
)

const (
	insertQuoteSQL = `INSERT INTO quotes (
        id,
        input_amount,
        input_currency,
        output_amount,
        output_currency,
        exchange_rate,
        fees,
        corridor,
        estimated_time,
        compliance_required,
        valid_until,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    );`

	getQuoteSQL = `SELECT
        id,
        input_amount,
        input_currency,
        output_amount,
        output_currency,
        exchange_rate,
        fees,
        corridor,
        estimated_time,
        compliance_required,
        valid_until,
        created_at
    FROM quotes
    WHERE id = $1;`

	insertPaymentSQL = `INSERT INTO payments (
        id,
        quote_id,
        request,
        fees,
        status,
        failure_reason,
        compliance,
        rail_id,
        rail_name,
        fallback_rail_id,
        estimated_completion,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12
    );`

	paymentColumns = `id,
        quote_id,
        request,
        fees,
        status,
        failure_reason,
        compliance,
        rail_id,
        rail_name,
        fallback_rail_id,
        estimated_completion,
        created_at,
        updated_at,
        completed_at`

	getPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1;`

	listRecentPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payments
    ORDER BY created_at DESC
    LIMIT $1;`

	listPaymentsBetweenSQL = `SELECT ` + paymentColumns + ` FROM payments
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	upsertStepSQL = `INSERT INTO payment_steps (
        payment_id,
        step_id,
        name,
        status,
        position,
        details,
        tx_hash,
        error_message,
        recorded_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (payment_id, step_id) DO UPDATE
    SET status        = EXCLUDED.status,
        details       = EXCLUDED.details,
        tx_hash       = EXCLUDED.tx_hash,
        error_message = EXCLUDED.error_message,
        recorded_at   = EXCLUDED.recorded_at;`

	listStepsSQL = `SELECT
        step_id,
        name,
        status,
        details,
        tx_hash,
        error_message,
        recorded_at
    FROM payment_steps
    WHERE payment_id = $1
    ORDER BY position;`

	updateStatusSQL = `UPDATE payments
    SET status = $2,
        failure_reason = $3,
        updated_at = $4,
        completed_at = CASE WHEN $2 = 'COMPLETED' THEN $4 ELSE completed_at END
    WHERE id = $1;`

	setComplianceSQL = `UPDATE payments
    SET compliance = $2, updated_at = $3
    WHERE id = $1;`

	activeForQuoteSQL = `SELECT EXISTS (
        SELECT 1 FROM payments
        WHERE quote_id = $1
          AND status NOT IN ('FAILED','CANCELLED')
    );`

	upsertCorridorRateSQL = `INSERT INTO corridor_rates (
        corridor,
        bucket_ts,
        rate,
        source
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (corridor, bucket_ts) DO UPDATE
    SET rate = EXCLUDED.rate,
        source = EXCLUDED.source;`

	latestCorridorRateSQL = `SELECT rate, bucket_ts
    FROM corridor_rates
    WHERE corridor = $1
    ORDER BY bucket_ts DESC
    LIMIT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store is the PostgreSQL-backed persistence collaborator.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// CreateQuote persists an issued quote.
func (s *Store) CreateQuote(ctx context.Context, q quote.Quote) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	fees, err := json.Marshal(q.Fees)
	if err != nil {
		return fmt.Errorf("marshal quote fees: %w", err)
	}

	_, execErr := pool.Exec(ctx, insertQuoteSQL,
		q.ID,
		q.InputAmount.String(),
		q.InputCurrency,
		q.OutputAmount.String(),
		q.OutputCurrency,
		q.ExchangeRate.String(),
		fees,
		q.Corridor,
		q.EstimatedTime,
		q.ComplianceRequired,
		q.ValidUntil,
		q.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert quote: %w", execErr)
	}
	return nil
}

// GetQuote loads a quote by id.
func (s *Store) GetQuote(ctx context.Context, id string) (quote.Quote, error) {
	pool, err := s.getPool()
	if err != nil {
		return quote.Quote{}, err
	}

	var (
		q                            quote.Quote
		inputStr, outputStr, rateStr string
		fees                         json.RawMessage
	)
	row := pool.QueryRow(ctx, getQuoteSQL, id)
	if scanErr := row.Scan(
		&q.ID,
		&inputStr,
		&q.InputCurrency,
		&outputStr,
		&q.OutputCurrency,
		&rateStr,
		&fees,
		&q.Corridor,
		&q.EstimatedTime,
		&q.ComplianceRequired,
		&q.ValidUntil,
		&q.CreatedAt,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return quote.Quote{}, ErrNotFound
		}
		return quote.Quote{}, fmt.Errorf("get quote: %w", scanErr)
	}

	if q.InputAmount, err = decimal.NewFromString(inputStr); err != nil {
		return quote.Quote{}, fmt.Errorf("parse input amount: %w", err)
	}
	if q.OutputAmount, err = decimal.NewFromString(outputStr); err != nil {
		return quote.Quote{}, fmt.Errorf("parse output amount: %w", err)
	}
	if q.ExchangeRate, err = decimal.NewFromString(rateStr); err != nil {
		return quote.Quote{}, fmt.Errorf("parse exchange rate: %w", err)
	}
	if err := json.Unmarshal(fees, &q.Fees); err != nil {
		return quote.Quote{}, fmt.Errorf("decode quote fees: %w", err)
	}
	return q, nil
}

// CreatePayment persists a new payment and its initial steps.
func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	request, err := json.Marshal(p.Request)
	if err != nil {
		return fmt.Errorf("marshal payment request: %w", err)
	}
	fees, err := json.Marshal(p.Fees)
	if err != nil {
		return fmt.Errorf("marshal payment fees: %w", err)
	}
	var complianceJSON []byte
	if p.Compliance != nil {
		if complianceJSON, err = json.Marshal(p.Compliance); err != nil {
			return fmt.Errorf("marshal compliance snapshot: %w", err)
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create payment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertPaymentSQL,
		p.ID,
		p.QuoteID,
		request,
		fees,
		string(p.Status),
		nullable(p.FailureReason),
		complianceJSON,
		nullable(p.RailID),
		nullable(p.RailName),
		nullable(p.FallbackRailID),
		nullable(p.EstimatedCompletionTime),
		p.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	for _, step := range p.Steps {
		if err := execUpsertStep(ctx, tx, p.ID, step); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create payment: %w", err)
	}
	return nil
}

// GetPayment loads a payment with its ordered steps.
func (s *Store) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getPaymentSQL, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	steps, err := s.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Steps = steps
	return p, nil
}

func (s *Store) listSteps(ctx context.Context, paymentID string) (payment.Steps, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStepsSQL, paymentID)
	if queryErr != nil {
		return nil, fmt.Errorf("list payment steps: %w", queryErr)
	}
	defer rows.Close()

	steps := make(payment.Steps, 0, len(payment.StepOrder))
	for rows.Next() {
		var (
			step                          payment.Step
			details, txHash, errorMessage sql.NullString
		)
		if err := rows.Scan(
			&step.ID,
			&step.Name,
			&step.Status,
			&details,
			&txHash,
			&errorMessage,
			&step.Timestamp,
		); err != nil {
			return nil, err
		}
		step.Details = details.String
		step.TxHash = txHash.String
		step.ErrorMessage = errorMessage.String
		steps = append(steps, step)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return steps, nil
}

// UpsertStep persists one step outcome, replacing any prior record with
// the same step id.
func (s *Store) UpsertStep(ctx context.Context, paymentID string, step payment.Step) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return execUpsertStep(ctx, pool, paymentID, step)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execUpsertStep(ctx context.Context, db execer, paymentID string, step payment.Step) error {
	position := payment.StepPosition(step.Name)
	if position < 0 {
		return fmt.Errorf("unknown pipeline step %q", step.Name)
	}

	if _, err := db.Exec(ctx, upsertStepSQL,
		paymentID,
		step.ID,
		string(step.Name),
		string(step.Status),
		position,
		nullable(step.Details),
		nullable(step.TxHash),
		nullable(step.ErrorMessage),
		step.Timestamp,
	); err != nil {
		return fmt.Errorf("upsert payment step: %w", err)
	}
	return nil
}

// UpdateStatus transitions a payment's status and retains the reason.
func (s *Store) UpdateStatus(ctx context.Context, paymentID string, status payment.Status, reason string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateStatusSQL, paymentID, string(status), nullable(reason), time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("update payment status: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCompliance stores the combined screening snapshot on the payment.
func (s *Store) SetCompliance(ctx context.Context, paymentID string, result compliance.Result) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal compliance snapshot: %w", err)
	}

	cmdTag, execErr := pool.Exec(ctx, setComplianceSQL, paymentID, payload, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("set compliance snapshot: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasActivePaymentForQuote reports whether a non-failed payment already
// references the quote. Enforces quote single-use at submission.
func (s *Store) HasActivePaymentForQuote(ctx context.Context, quoteID string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, activeForQuoteSQL, quoteID).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("check quote usage: %w", scanErr)
	}
	return exists, nil
}

// ListRecentPayments lists the most recent payments with their steps.
func (s *Store) ListRecentPayments(ctx context.Context, limit int) ([]payment.Payment, error) {
	return s.listPayments(ctx, listRecentPaymentsSQL, limit)
}

// ListPaymentsBetween lists payments created within a time window.
func (s *Store) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]payment.Payment, error) {
	return s.listPayments(ctx, listPaymentsBetweenSQL, from, to)
}

func (s *Store) listPayments(ctx context.Context, query string, args ...any) ([]payment.Payment, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list payments: %w", queryErr)
	}
	defer rows.Close()

	payments := make([]payment.Payment, 0)
	for rows.Next() {
		p, scanErr := scanPayment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		payments = append(payments, *p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range payments {
		steps, err := s.listSteps(ctx, payments[i].ID)
		if err != nil {
			return nil, err
		}
		payments[i].Steps = steps
	}
	return payments, nil
}

// UpsertCorridorRate persists or updates one corridor rate sample.
func (s *Store) UpsertCorridorRate(ctx context.Context, sample CorridorRateSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertCorridorRateSQL,
		sample.Corridor,
		sample.Bucket,
		sample.Rate.String(),
		sample.Source,
	); execErr != nil {
		return fmt.Errorf("upsert corridor rate: %w", execErr)
	}
	return nil
}

// LatestCorridorRate returns the most recent persisted rate for a corridor.
func (s *Store) LatestCorridorRate(ctx context.Context, corridor string) (decimal.Decimal, time.Time, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	var (
		rateStr string
		bucket  time.Time
	)
	if scanErr := pool.QueryRow(ctx, latestCorridorRateSQL, corridor).Scan(&rateStr, &bucket); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return decimal.Decimal{}, time.Time{}, fmt.Errorf("%w: %s", rates.ErrRateUnavailable, corridor)
		}
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("latest corridor rate: %w", scanErr)
	}

	rate, convErr := decimal.NewFromString(rateStr)
	if convErr != nil {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("parse corridor rate: %w", convErr)
	}
	return rate, bucket, nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p                                      payment.Payment
		status                                 string
		request, fees                          json.RawMessage
		complianceJSON                         []byte
		failureReason                          sql.NullString
		railID, railName, fallbackID, estimate sql.NullString
		completedAt                            sql.NullTime
	)

	if err := row.Scan(
		&p.ID,
		&p.QuoteID,
		&request,
		&fees,
		&status,
		&failureReason,
		&complianceJSON,
		&railID,
		&railName,
		&fallbackID,
		&estimate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(request, &p.Request); err != nil {
		return nil, fmt.Errorf("decode payment request: %w", err)
	}
	if err := json.Unmarshal(fees, &p.Fees); err != nil {
		return nil, fmt.Errorf("decode payment fees: %w", err)
	}
	if len(complianceJSON) > 0 {
		var result compliance.Result
		if err := json.Unmarshal(complianceJSON, &result); err != nil {
			return nil, fmt.Errorf("decode compliance snapshot: %w", err)
		}
		p.Compliance = &result
	}

	p.Status = payment.Status(status)
	p.FailureReason = failureReason.String
	p.RailID = railID.String
	p.RailName = railName.String
	p.FallbackRailID = fallbackID.String
	p.EstimatedCompletionTime = estimate.String
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}

	return &p, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

var (
	_ QuoteStore     = (*Store)(nil)
	_ PaymentStore   = (*Store)(nil)
	_ RateStore      = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
