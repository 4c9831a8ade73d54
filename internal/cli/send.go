package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"remit-rails/internal/app"
)

var (
	sendQuoteID   string
	sendAmount    string
	sendFrom      string
	sendTo        string
	sendSender    string
	sendRecipient string
	sendName      string
	sendAddress   string
	sendBank      string
	sendPurpose   string
	sendPriority  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Submit a payment and run it through settlement",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendQuoteID == "" && sendAmount == "" {
			return fmt.Errorf("either --quote or --amount is required")
		}
		if sendName == "" || sendBank == "" {
			return fmt.Errorf("--recipient-name and --bank-account are required")
		}

		opts := app.SendOptions{
			QuoteID:       sendQuoteID,
			Amount:        sendAmount,
			FromCurrency:  sendFrom,
			ToCurrency:    sendTo,
			SenderID:      sendSender,
			RecipientID:   sendRecipient,
			RecipientName: sendName,
			Address:       sendAddress,
			BankAccount:   sendBank,
			Purpose:       sendPurpose,
			Priority:      sendPriority,
		}

		return getApp().Send(cmd.Context(), opts)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendQuoteID, "quote", "", "Quote id to redeem (omit to price inline)")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "Amount to send when no quote id is given")
	sendCmd.Flags().StringVar(&sendFrom, "from", "USD", "Source currency code")
	sendCmd.Flags().StringVar(&sendTo, "to", "MXN", "Destination currency code")
	sendCmd.Flags().StringVar(&sendSender, "sender", "", "Sender account id")
	sendCmd.Flags().StringVar(&sendRecipient, "recipient", "", "Recipient account id")
	sendCmd.Flags().StringVar(&sendName, "recipient-name", "", "Recipient legal name")
	sendCmd.Flags().StringVar(&sendAddress, "address", "", "Recipient on-chain address")
	sendCmd.Flags().StringVar(&sendBank, "bank-account", "", "Recipient bank account")
	sendCmd.Flags().StringVar(&sendPurpose, "purpose", "", "Transfer purpose")
	sendCmd.Flags().StringVar(&sendPriority, "priority", "", "Rail priority: cost, speed, or reliability")
}
