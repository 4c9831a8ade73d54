package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"remit-rails/internal/app"
)

var (
	showPaymentID string
	showLimit     int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a payment or recent payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showPaymentID == "" && showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			PaymentID: showPaymentID,
			Limit:     showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showPaymentID, "payment", "", "Payment id to display in full")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of recent payments to list")
}
