package rates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestHTTPSourceMissingBaseURL(t *testing.T) {
	s := NewHTTPSource(HTTPOptions{}, noopLogger())
	if _, err := s.Rate(context.Background(), "USD", "MXN"); err == nil {
		t.Fatal("缺少 base_url 时应返回错误")
	}
}

func TestHTTPSourceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "USD" || r.URL.Query().Get("to") != "MXN" {
			t.Fatalf("查询参数不正确: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"rate": "18.5"})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	rate, err := s.Rate(context.Background(), "usd", "mxn")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if rate.String() != "18.5" {
		t.Fatalf("期望汇率 18.5, 实际 %s", rate.String())
	}
}

func TestHTTPSourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := s.Rate(context.Background(), "USD", "XXX")
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("404 应映射为 ErrRateUnavailable, 实际 %v", err)
	}
}

func TestHTTPSourceRejectsNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rate": "0"})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := s.Rate(context.Background(), "USD", "MXN"); err == nil {
		t.Fatal("非正汇率应报错")
	}
}

func TestStaticTableLookup(t *testing.T) {
	table := NewStaticTable(map[string]float64{"usd:mxn": 18.5})

	rate, err := table.Rate(context.Background(), "USD", "MXN")
	if err != nil {
		t.Fatalf("static lookup: %v", err)
	}
	if rate.String() != "18.5" {
		t.Fatalf("expected 18.5, got %s", rate)
	}

	if _, err := table.Rate(context.Background(), "USD", "JPY"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}
