package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"remit-rails/internal/orchestrator"
	"remit-rails/internal/quote"
)

// Quote prices a transfer and prints the resulting quote.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	amount, err := decimal.NewFromString(opts.Amount)
	if err != nil {
		return fmt.Errorf("invalid --amount value %q: %w", opts.Amount, err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	orch, cleanup, err := a.newOrchestrator(a.resolveStores(store), orchestrator.Options{})
	if err != nil {
		return err
	}
	defer cleanup()

	q, err := orch.RequestQuote(ctx, quote.Request{
		Amount:       amount,
		FromCurrency: opts.FromCurrency,
		ToCurrency:   opts.ToCurrency,
	})
	if err != nil {
		return err
	}

	printQuote(q)
	return nil
}

func printQuote(q quote.Quote) {
	out := os.Stdout
	fmt.Fprintf(out, "Quote %s (%s)\n", q.ID, q.Corridor)
	fmt.Fprintf(out, "  Send:           %s %s\n", q.InputAmount.StringFixed(2), q.InputCurrency)
	fmt.Fprintf(out, "  Recipient gets: %s %s\n", q.OutputAmount.StringFixed(2), q.OutputCurrency)
	fmt.Fprintf(out, "  Exchange rate:  %s\n", q.ExchangeRate.String())
	fmt.Fprintf(out, "  Platform fee:   %s\n", q.Fees.PlatformFee.StringFixed(2))
	fmt.Fprintf(out, "  Network fee:    %s\n", q.Fees.NetworkFee.StringFixed(2))
	fmt.Fprintf(out, "  Total fees:     %s\n", q.Fees.Total.StringFixed(2))
	fmt.Fprintf(out, "  Est. time:      %s\n", q.EstimatedTime)
	fmt.Fprintf(out, "  Compliance:     %v\n", q.ComplianceRequired)
	fmt.Fprintf(out, "  Valid until:    %s\n", q.ValidUntil.Format(time.RFC3339))
}
