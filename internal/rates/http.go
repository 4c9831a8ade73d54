package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPOptions parameterise the remote rate source.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource fetches corridor rates from a remote FX rate API.
type HTTPSource struct {
	opts   HTTPOptions
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPSource builds a remote rate source.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "rates_http").Logger(),
	}
}

type rateResponse struct {
	Rate      string    `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// Rate 调用远端 FX API 获取指定通道的汇率。
func (s *HTTPSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.opts.BaseURL == "" {
		return decimal.Decimal{}, errors.New("rates base url not configured")
	}

	endpoint := fmt.Sprintf("%s/rates?from=%s&to=%s",
		strings.TrimRight(s.opts.BaseURL, "/"),
		url.QueryEscape(strings.ToUpper(from)),
		url.QueryEscape(strings.ToUpper(to)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch corridor rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, Corridor(from, to))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("rates API 响应码异常: %d", resp.StatusCode)
	}

	var payload rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode rates response: %w", err)
	}

	rate, err := decimal.NewFromString(payload.Rate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate %q: %w", payload.Rate, err)
	}
	if rate.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("remote rate must be positive, got %s", rate)
	}

	s.logger.Debug().Str("corridor", Corridor(from, to)).Str("rate", rate.String()).Msg("corridor rate fetched")
	return rate, nil
}

var _ Source = (*HTTPSource)(nil)
