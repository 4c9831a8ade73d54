package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"remit-rails/internal/compliance"
	"remit-rails/internal/config"
	"remit-rails/internal/events"
	"remit-rails/internal/orchestrator"
	"remit-rails/internal/pipeline"
	"remit-rails/internal/provider"
	"remit-rails/internal/quote"
	"remit-rails/internal/rail"
	"remit-rails/internal/rates"
	"remit-rails/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore returns the PostgreSQL store, or nil when no DSN is
// configured. The caller decides whether running without persistence
// is acceptable for its command.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// stores resolves quote/payment/rate persistence, falling back to the
// in-process store so single-command flows work without a database.
type stores struct {
	quotes   storage.QuoteStore
	payments storage.PaymentStore
	fxRates  storage.RateStore
	reader   rates.LatestRateReader
}

func (a *App) resolveStores(store *storage.Store) stores {
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory store")
		mem := storage.NewMemory()
		return stores{quotes: mem, payments: mem, fxRates: mem, reader: mem}
	}
	return stores{quotes: store, payments: store, fxRates: store, reader: store}
}

// newRateSource layers rate sourcing: persisted samples first, then the
// remote FX API when configured, then the static corridor table.
func (a *App) newRateSource(reader rates.LatestRateReader) rates.Source {
	var fallback rates.Source = rates.NewStaticTable(a.Config.Rates.Static)
	if a.Config.Rates.BaseURL != "" {
		fallback = rates.NewHTTPSource(rates.HTTPOptions{
			BaseURL:   a.Config.Rates.BaseURL,
			Timeout:   a.Config.Rates.RequestTimeout,
			UserAgent: a.Config.Rates.UserAgent,
		}, a.Logger)
	}
	if reader == nil {
		return fallback
	}
	return rates.NewStoredSource(reader, fallback, a.Config.Rates.MaxAge, a.Logger)
}

// newSettlement wires the provider bundle. The simulated providers
// carry every seam; the on-chain hop is swapped for the real ERC-20
// adapter when an RPC endpoint is configured.
func (a *App) newSettlement(sim *provider.Simulated) provider.Settlement {
	settlement := sim.Providers()
	if a.Config.Ethereum.RPCURL != "" {
		settlement.Chain = provider.NewEthereum(provider.EthereumOptions{
			RPCURL:         a.Config.Ethereum.RPCURL,
			TokenAddress:   a.Config.Ethereum.TokenAddress,
			TokenDecimals:  a.Config.Ethereum.TokenDecimals,
			PrivateKey:     a.Config.Ethereum.PrivateKey,
			ChainID:        a.Config.Ethereum.ChainID,
			GasLimit:       a.Config.Ethereum.GasLimit,
			Timeout:        a.Config.Ethereum.RequestTimeout,
			WaitForReceipt: a.Config.Ethereum.WaitForReceipt,
		}, a.Logger)
	}
	return settlement
}

func (a *App) newPublisher() (events.Publisher, error) {
	if !a.Config.Kafka.Enabled {
		return events.NewNoopPublisher(a.Logger), nil
	}
	return events.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Logger)
}

func (a *App) newCalculator(source rates.Source) *quote.Calculator {
	fees := a.Config.Fees
	return quote.NewCalculator(quote.Options{
		PlatformFeePct:      decimal.NewFromFloat(fees.PlatformFeePct),
		NetworkFee:          decimal.NewFromFloat(fees.NetworkFee),
		MaxAmount:           decimal.NewFromFloat(fees.MaxAmount),
		ComplianceThreshold: decimal.NewFromFloat(fees.ComplianceThreshold),
		TTL:                 fees.QuoteTTL,
	}, source)
}

// newOrchestrator assembles the full engine over the given stores.
func (a *App) newOrchestrator(st stores, opts orchestrator.Options) (*orchestrator.Orchestrator, func(), error) {
	publisher, err := a.newPublisher()
	if err != nil {
		return nil, nil, err
	}

	sim := &provider.Simulated{Latency: 50 * time.Millisecond}
	runner := pipeline.NewRunner(
		st.payments,
		a.newSettlement(sim),
		sim,
		sim,
		compliance.NewAggregator(a.Config.Compliance.IdentityWeight, a.Config.Compliance.RiskWeight),
		publisher,
		a.Logger,
	)

	orch := orchestrator.New(
		a.newCalculator(a.newRateSource(st.reader)),
		st.quotes,
		st.payments,
		rail.NewSelector(rail.DefaultCatalog()),
		runner,
		opts,
		a.Logger,
	)

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close event publisher")
		}
	}
	return orch, cleanup, nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(_ context.Context) error {
	return storage.RunMigrations(a.Config.Database.DSN, a.Config.Database.MigrationsPath)
}

// QuoteOptions configure the quote command.
type QuoteOptions struct {
	Amount       string
	FromCurrency string
	ToCurrency   string
}

// SendOptions configure the send command. QuoteID may be empty, in
// which case a fresh quote is priced inline from the amount fields.
type SendOptions struct {
	QuoteID      string
	Amount       string
	FromCurrency string
	ToCurrency   string

	SenderID      string
	RecipientID   string
	RecipientName string
	Address       string
	BankAccount   string
	Purpose       string
	Priority      string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	PaymentID string
	Limit     int
}

// ExportOptions hold parameters for exporting settled payments.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
