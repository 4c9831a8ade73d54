package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cancelPaymentID string
	cancelReason    string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a payment before funds movement starts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelPaymentID == "" {
			return fmt.Errorf("--payment is required")
		}
		return getApp().Cancel(cmd.Context(), cancelPaymentID, cancelReason)
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelPaymentID, "payment", "", "Payment id to cancel")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Optional cancellation reason")
}
