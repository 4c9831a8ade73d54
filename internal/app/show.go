package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"remit-rails/internal/orchestrator"
	"remit-rails/internal/storage"
)

// Show prints one payment in full, or the most recent payments when no
// id is given.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show payments")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.PaymentID != "" {
		p, err := store.GetPayment(ctx, opts.PaymentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("payment %s not found", opts.PaymentID)
			}
			return err
		}
		printPayment(p)
		return nil
	}

	payments, err := store.ListRecentPayments(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		fmt.Fprintln(os.Stdout, "no payments found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tID\tCorridor\tAmount\tRail\tStatus\tReason")

	for _, p := range payments {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s:%s\t%s\t%s\t%s\t%s\n",
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.ID,
			p.Request.FromCurrency,
			p.Request.ToCurrency,
			p.Request.AmountUSD.StringFixed(2),
			p.RailID,
			p.Status,
			sanitizeInline(p.FailureReason),
		)
	}

	writer.Flush()
	return nil
}

// Cancel marks a payment CANCELLED if funds movement has not started.
func (a *App) Cancel(ctx context.Context, paymentID, reason string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot cancel payments")
	}
	if closeStore != nil {
		defer closeStore()
	}

	orch, cleanup, err := a.newOrchestrator(a.resolveStores(store), orchestrator.Options{})
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := orch.Cancel(ctx, paymentID, reason)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "payment %s cancelled\n", p.ID)
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
