package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"remit-rails/internal/payment"
	"remit-rails/internal/quote"
)

func TestMemoryQuoteImmutable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	q := quote.Quote{ID: "q1", Corridor: "USD:MXN", CreatedAt: time.Now().UTC()}
	if err := m.CreateQuote(ctx, q); err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if err := m.CreateQuote(ctx, q); err == nil {
		t.Fatal("重复的报价 id 应被拒绝")
	}

	if _, err := m.GetQuote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryGetPaymentReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &payment.Payment{ID: "p1", Status: payment.StatusCreated, CreatedAt: time.Now().UTC()}
	if err := m.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	got, err := m.GetPayment(ctx, "p1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	got.Status = payment.StatusFailed
	got.Steps = got.Steps.Upsert(payment.NewStep(payment.StepInitiate, payment.StepCompleted))

	fresh, err := m.GetPayment(ctx, "p1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if fresh.Status != payment.StatusCreated {
		t.Fatalf("mutating the returned copy must not affect the store, got status %s", fresh.Status)
	}
	if len(fresh.Steps) != 0 {
		t.Fatalf("expected no steps, got %d", len(fresh.Steps))
	}
}

func TestMemoryHasActivePaymentForQuote(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	active := &payment.Payment{ID: "p1", QuoteID: "q1", Status: payment.StatusProcessing}
	if err := m.CreatePayment(ctx, active); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	used, err := m.HasActivePaymentForQuote(ctx, "q1")
	if err != nil {
		t.Fatalf("check quote usage: %v", err)
	}
	if !used {
		t.Fatal("进行中的支付应占用报价")
	}

	if err := m.UpdateStatus(ctx, "p1", payment.StatusFailed, "step failed"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	used, err = m.HasActivePaymentForQuote(ctx, "q1")
	if err != nil {
		t.Fatalf("check quote usage: %v", err)
	}
	if used {
		t.Fatal("failed payments must release the quote")
	}
}

func TestMemoryUpdateStatusSetsCompletedAt(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &payment.Payment{ID: "p1", Status: payment.StatusSettling}
	if err := m.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if err := m.UpdateStatus(ctx, "p1", payment.StatusCompleted, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := m.GetPayment(ctx, "p1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatal("COMPLETED 状态应记录 completed_at")
	}
}

func TestMemoryLatestCorridorRate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	older := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	newer := older.Add(5 * time.Minute)

	for _, sample := range []CorridorRateSample{
		{Corridor: "USD:MXN", Bucket: older, Rate: decimal.NewFromFloat(18.4)},
		{Corridor: "USD:MXN", Bucket: newer, Rate: decimal.NewFromFloat(18.6)},
		{Corridor: "USD:PHP", Bucket: newer, Rate: decimal.NewFromFloat(56.2)},
	} {
		if err := m.UpsertCorridorRate(ctx, sample); err != nil {
			t.Fatalf("upsert sample: %v", err)
		}
	}

	rate, bucket, err := m.LatestCorridorRate(ctx, "USD:MXN")
	if err != nil {
		t.Fatalf("latest rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(18.6)) {
		t.Fatalf("expected freshest rate 18.6, got %s", rate)
	}
	if !bucket.Equal(newer) {
		t.Fatalf("expected bucket %s, got %s", newer, bucket)
	}
}
