package eodhd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		BaseURL:        srv.URL,
		APIKey:         "demo",
		EquityTypes:    []string{"Common Stock"},
		RequestsPerSec: 1000,
		Burst:          10,
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryInitial:   time.Millisecond,
	})
	return c, srv
}

func TestListInstrumentsEquities(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange-symbol-list/US", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		_, _ = w.Write([]byte(`[
			{"Code":"aapl","Name":"Apple Inc","Country":"USA","Exchange":"NASDAQ","Currency":"USD","Type":"Common Stock","Isin":"US0378331005"},
			{"Code":"SPY","Name":"SPDR S&P 500","Country":"USA","Exchange":"NYSE ARCA","Currency":"USD","Type":"ETF","Isin":null},
			{"Code":"","Name":"blank","Type":"Common Stock"}
		]`))
	})
	c, _ := newTestClient(t, mux)

	got, err := c.ListInstruments(context.Background(), model.AssetClassEquity)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, model.AssetClassEquity, got[0].AssetClass)
	assert.Equal(t, Code, got[0].ProviderCode)
	assert.Equal(t, "NASDAQ", got[0].Exchange)
	assert.Equal(t, "US0378331005", got[0].ISIN)
}

func TestListInstrumentsFX(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange-symbol-list/FOREX", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"Code":"EURUSD","Name":"Euro/US Dollar","Country":"Unknown","Exchange":"FOREX","Currency":"USD","Type":"Currency","Isin":null}]`))
	})
	c, _ := newTestClient(t, mux)

	got, err := c.ListInstruments(context.Background(), model.AssetClassFX)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EURUSD", got[0].Symbol)
	assert.Empty(t, got[0].ISIN)
}

func TestListInstrumentsUnreachable(t *testing.T) {
	c, srv := newTestClient(t, http.NotFoundHandler())
	srv.Close()

	_, err := c.ListInstruments(context.Background(), model.AssetClassEquity)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrProviderUnavailable)
}

func TestListInstrumentsServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ListInstruments(context.Background(), model.AssetClassFX)
	assert.ErrorIs(t, err, port.ErrProviderUnavailable)
	assert.EqualValues(t, 3, calls.Load(), "initial attempt plus two retries")
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"Code":"GBPUSD","Type":"Currency"}]`))
	}))

	got, err := c.ListInstruments(context.Background(), model.AssetClassFX)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchSeries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/eod/NVDA.US", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-01-02", q.Get("from"))
		assert.Equal(t, "2024-01-05", q.Get("to"))
		assert.Equal(t, "d", q.Get("period"))
		_, _ = w.Write([]byte(`[
			{"date":"2024-01-02","open":492.44,"high":492.95,"low":475.95,"close":481.68,"adjusted_close":48.168,"volume":41125400},
			{"date":"2024-01-03","open":"474.85","high":481.84,"low":473.2,"close":475.69,"adjusted_close":null,"volume":32089600}
		]`))
	})
	c, _ := newTestClient(t, mux)

	inst := model.Instrument{ID: uuid.New(), AssetClass: model.AssetClassEquity, Symbol: "NVDA"}
	hint := model.RangeHint{
		From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC),
	}
	bars, err := c.FetchSeries(context.Background(), inst, hint)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, inst.ID, bars[0].InstrumentID)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), bars[0].Timestamp)
	assert.True(t, decimal.RequireFromString("481.68").Equal(bars[0].Close))
	assert.True(t, decimal.RequireFromString("48.168").Equal(bars[0].AdjustedClose))
	assert.True(t, decimal.RequireFromString("474.85").Equal(bars[1].Open))
	assert.True(t, bars[1].Close.Equal(bars[1].AdjustedClose), "missing adjusted close falls back to close")
}

func TestFetchSeriesForexTicker(t *testing.T) {
	var path string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))

	bars, err := c.FetchSeries(context.Background(), model.Instrument{AssetClass: model.AssetClassFX, Symbol: "EURUSD"}, model.RangeHint{})
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, "/eod/EURUSD.FOREX", path)
}

func TestFetchSeriesNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	_, err := c.FetchSeries(context.Background(), model.Instrument{AssetClass: model.AssetClassEquity, Symbol: "ZZZZ"}, model.RangeHint{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NotErrorIs(t, err, port.ErrProviderUnavailable)
}

func TestFetchSeriesBadDate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"date":"02/01/2024","close":1}]`))
	}))

	_, err := c.FetchSeries(context.Background(), model.Instrument{AssetClass: model.AssetClassEquity, Symbol: "AAPL"}, model.RangeHint{})
	assert.ErrorContains(t, err, "invalid date")
}

func TestUnsupportedAssetClass(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.ListInstruments(context.Background(), model.AssetClass("CRYPTO"))
	assert.Error(t, err)
}
