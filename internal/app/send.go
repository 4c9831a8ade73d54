package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"remit-rails/internal/orchestrator"
	"remit-rails/internal/payment"
	"remit-rails/internal/quote"
	"remit-rails/internal/rail"
)

// Send submits a payment and runs the settlement pipeline to its
// terminal (or parked) state, then prints the step-by-step outcome.
func (a *App) Send(ctx context.Context, opts SendOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	orch, cleanup, err := a.newOrchestrator(a.resolveStores(store), orchestrator.Options{
		Priority:    rail.Priority(opts.Priority),
		Synchronous: true,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	quoteID := opts.QuoteID
	if quoteID == "" {
		if opts.Amount == "" {
			return errors.New("either --quote or --amount is required")
		}
		amount, err := decimal.NewFromString(opts.Amount)
		if err != nil {
			return fmt.Errorf("invalid --amount value %q: %w", opts.Amount, err)
		}
		q, err := orch.RequestQuote(ctx, quote.Request{
			Amount:       amount,
			FromCurrency: opts.FromCurrency,
			ToCurrency:   opts.ToCurrency,
		})
		if err != nil {
			return err
		}
		printQuote(q)
		quoteID = q.ID
	}

	p, err := orch.ProcessPayment(ctx, orchestrator.SendRequest{
		QuoteID:     quoteID,
		SenderID:    opts.SenderID,
		RecipientID: opts.RecipientID,
		RecipientDetails: payment.RecipientDetails{
			Name:        opts.RecipientName,
			Address:     opts.Address,
			BankAccount: opts.BankAccount,
		},
		Purpose: opts.Purpose,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout)
	printPayment(p)
	if p.Status == payment.StatusFailed {
		return fmt.Errorf("payment %s failed: %s", p.ID, p.FailureReason)
	}
	return nil
}

func printPayment(p *payment.Payment) {
	out := os.Stdout
	fmt.Fprintf(out, "Payment %s\n", p.ID)
	fmt.Fprintf(out, "  Quote:   %s\n", p.QuoteID)
	fmt.Fprintf(out, "  Rail:    %s (%s)\n", p.RailName, p.RailID)
	fmt.Fprintf(out, "  Status:  %s\n", p.Status)
	if p.FailureReason != "" {
		fmt.Fprintf(out, "  Reason:  %s\n", p.FailureReason)
	}
	if p.Compliance != nil {
		fmt.Fprintf(out, "  Risk:    %s (score %.1f, %s)\n", p.Compliance.RiskLevel, p.Compliance.RiskScore, p.Compliance.Recommendation)
	}
	fmt.Fprintln(out, "  Steps:")
	for _, step := range p.Steps {
		line := fmt.Sprintf("    %-20s %-10s %s", step.Name, step.Status, step.Timestamp.UTC().Format(time.RFC3339))
		if step.TxHash != "" {
			line += "  tx=" + step.TxHash
		}
		if step.ErrorMessage != "" {
			line += "  error=" + step.ErrorMessage
		}
		fmt.Fprintln(out, line)
	}
	if p.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", p.CompletedAt.UTC().Format(time.RFC3339))
	}
}
