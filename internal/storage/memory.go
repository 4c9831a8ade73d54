package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
	"remit-rails/internal/payment"
	"remit-rails/internal/quote"
	"remit-rails/internal/rates"
)

// Memory is an in-process store used by tests and by CLI runs without a
// configured database. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	quotes   map[string]quote.Quote
	payments map[string]*payment.Payment
	fxRates  map[string]CorridorRateSample
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		quotes:   make(map[string]quote.Quote),
		payments: make(map[string]*payment.Payment),
		fxRates:  make(map[string]CorridorRateSample),
	}
}

// CreateQuote stores an immutable quote.
func (m *Memory) CreateQuote(_ context.Context, q quote.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.quotes[q.ID]; exists {
		return fmt.Errorf("quote %s already exists", q.ID)
	}
	m.quotes[q.ID] = q
	return nil
}

// GetQuote loads a quote by id.
func (m *Memory) GetQuote(_ context.Context, id string) (quote.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[id]
	if !ok {
		return quote.Quote{}, ErrNotFound
	}
	return q, nil
}

// CreatePayment stores a new payment.
func (m *Memory) CreatePayment(_ context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payments[p.ID]; exists {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

// GetPayment returns a copy of the stored payment.
func (m *Memory) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(p), nil
}

// UpsertStep records one step outcome keyed by step id.
func (m *Memory) UpsertStep(_ context.Context, paymentID string, step payment.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	p.Steps = p.Steps.Upsert(step)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus transitions the stored payment's status.
func (m *Memory) UpdateStatus(_ context.Context, paymentID string, status payment.Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.Status = status
	p.FailureReason = reason
	p.UpdatedAt = now
	if status == payment.StatusCompleted {
		p.CompletedAt = &now
	}
	return nil
}

// SetCompliance stores the combined screening snapshot.
func (m *Memory) SetCompliance(_ context.Context, paymentID string, result compliance.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	snapshot := result
	p.Compliance = &snapshot
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// HasActivePaymentForQuote reports whether a non-failed payment references the quote.
func (m *Memory) HasActivePaymentForQuote(_ context.Context, quoteID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.QuoteID != quoteID {
			continue
		}
		if p.Status != payment.StatusFailed && p.Status != payment.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

// ListRecentPayments lists payments newest first.
func (m *Memory) ListRecentPayments(_ context.Context, limit int) ([]payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]payment.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		all = append(all, *clonePayment(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListPaymentsBetween lists payments created within a window, oldest first.
func (m *Memory) ListPaymentsBetween(_ context.Context, from, to time.Time) ([]payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := make([]payment.Payment, 0)
	for _, p := range m.payments {
		if p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
			continue
		}
		window = append(window, *clonePayment(p))
	}
	sort.Slice(window, func(i, j int) bool {
		if !window[i].CreatedAt.Equal(window[j].CreatedAt) {
			return window[i].CreatedAt.Before(window[j].CreatedAt)
		}
		return window[i].ID < window[j].ID
	})
	return window, nil
}

// UpsertCorridorRate stores a corridor rate sample keyed by corridor+bucket.
func (m *Memory) UpsertCorridorRate(_ context.Context, sample CorridorRateSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s@%d", sample.Corridor, sample.Bucket.UnixNano())
	m.fxRates[key] = sample
	return nil
}

// LatestCorridorRate returns the freshest stored rate for a corridor.
func (m *Memory) LatestCorridorRate(_ context.Context, corridor string) (decimal.Decimal, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  CorridorRateSample
		found bool
	)
	for _, sample := range m.fxRates {
		if sample.Corridor != corridor {
			continue
		}
		if !found || sample.Bucket.After(best.Bucket) {
			best = sample
			found = true
		}
	}
	if !found {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("%w: %s", rates.ErrRateUnavailable, corridor)
	}
	return best.Rate, best.Bucket, nil
}

func clonePayment(p *payment.Payment) *payment.Payment {
	cloned := *p
	cloned.Steps = make(payment.Steps, len(p.Steps))
	copy(cloned.Steps, p.Steps)
	if p.Compliance != nil {
		snapshot := *p.Compliance
		cloned.Compliance = &snapshot
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cloned.CompletedAt = &t
	}
	return &cloned
}

var (
	_ QuoteStore   = (*Memory)(nil)
	_ PaymentStore = (*Memory)(nil)
	_ RateStore    = (*Memory)(nil)
)
