package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"remit-rails/internal/app"
)

var (
	quoteAmount string
	quoteFrom   string
	quoteTo     string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a transfer and print the quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		if quoteAmount == "" {
			return fmt.Errorf("--amount is required")
		}

		opts := app.QuoteOptions{
			Amount:       quoteAmount,
			FromCurrency: quoteFrom,
			ToCurrency:   quoteTo,
		}

		return getApp().Quote(cmd.Context(), opts)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Amount to send, in source currency")
	quoteCmd.Flags().StringVar(&quoteFrom, "from", "USD", "Source currency code")
	quoteCmd.Flags().StringVar(&quoteTo, "to", "MXN", "Destination currency code")
}
