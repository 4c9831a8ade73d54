package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"remit-rails/internal/payment"
)

// defaultExportWindow bounds the export when --from is not given.
const defaultExportWindow = 30 * 24 * time.Hour

// Export renders historical payments as CSV and/or a PNG volume chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	payments, err := store.ListPaymentsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		a.Logger.Info().Msg("no payments found for export window")
		return nil
	}

	downsampled := downsamplePayments(payments, opts.MaxPoints)
	a.Logger.Info().Int("total", len(payments)).Int("exported", len(downsampled)).Msg("exporting payments")

	if opts.CSVPath != "" {
		if err := writePaymentsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePaymentsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePayments(payments []payment.Payment, max int) []payment.Payment {
	if max <= 0 || len(payments) <= max {
		return payments
	}

	result := make([]payment.Payment, 0, max)
	step := float64(len(payments)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(payments) {
			idx = len(payments) - 1
		}
		result = append(result, payments[idx])
	}
	return result
}

func writePaymentsCSV(path string, payments []payment.Payment) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "payment_id", "corridor", "amount_usd", "total_fees", "rail", "status", "failure_reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range payments {
		record := []string{
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.ID,
			p.Request.FromCurrency + ":" + p.Request.ToCurrency,
			p.Request.AmountUSD.StringFixed(2),
			p.Fees.Total.StringFixed(2),
			p.RailID,
			string(p.Status),
			sanitizeInline(p.FailureReason),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePaymentsPNG(path string, payments []payment.Payment) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(payments))
	volume := make([]float64, len(payments))
	fees := make([]float64, len(payments))

	for i, p := range payments {
		x[i] = p.CreatedAt
		volume[i] = p.Request.AmountUSD.InexactFloat64()
		fees[i] = p.Fees.Total.InexactFloat64()
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Volume (USD)",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Fees (USD)",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Volume",
				XValues: x,
				YValues: volume,
			},
			chart.TimeSeries{
				Name:    "Fees",
				XValues: x,
				YValues: fees,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
