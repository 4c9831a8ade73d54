package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Receipt is the reference returned by a settlement collaborator.
type Receipt struct {
	Reference string
	TxHash    string
}

// StableOnRamp converts fiat into a stable-value asset.
type StableOnRamp interface {
	ConvertFiatToStable(ctx context.Context, amount decimal.Decimal, account string) (Receipt, error)
}

// ChainTransferor moves stable value across a blockchain network.
type ChainTransferor interface {
	TransferOnChain(ctx context.Context, amount decimal.Decimal, destination string) (Receipt, error)
}

// StableOffRamp converts stable value into the destination currency.
type StableOffRamp interface {
	ConvertStableToFiat(ctx context.Context, amount decimal.Decimal, account string) (Receipt, error)
}

// BankSettler delivers funds to the recipient's bank account.
type BankSettler interface {
	SettleToBank(ctx context.Context, amount decimal.Decimal, bankAccount string) (Receipt, error)
}

// Settlement bundles the four collaborators the pipeline calls out to.
type Settlement struct {
	OnRamp  StableOnRamp
	Chain   ChainTransferor
	OffRamp StableOffRamp
	Settler BankSettler
}
