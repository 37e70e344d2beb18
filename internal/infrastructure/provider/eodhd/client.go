package eodhd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

const (
	Code = "EODHD"

	defaultBaseURL        = "https://eodhd.com/api"
	defaultEquityExchange = "US"
	forexExchange         = "FOREX"
	dateLayout            = "2006-01-02"
)

type Options struct {
	BaseURL        string
	APIKey         string
	EquityExchange string   // EODHD exchange code for equities, e.g. "US"
	EquityTypes    []string // keep only these listing types; empty keeps all
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
	MaxRetries     uint64
	RetryInitial   time.Duration
}

// Client talks to the EODHD REST API.
type Client struct {
	baseURL        string
	apiKey         string
	equityExchange string
	equityTypes    map[string]struct{}
	client         *http.Client
	limiter        *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.EquityExchange == "" {
		opts.EquityExchange = defaultEquityExchange
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 500 * time.Millisecond
	}

	var types map[string]struct{}
	if len(opts.EquityTypes) > 0 {
		types = make(map[string]struct{}, len(opts.EquityTypes))
		for _, t := range opts.EquityTypes {
			types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}

	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		equityExchange: strings.ToUpper(opts.EquityExchange),
		equityTypes:    types,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: newRetryTransport(http.DefaultTransport, opts.MaxRetries, opts.RetryInitial),
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
	}
}

func (c *Client) Code() string { return Code }

// TickerInfo is one row of /exchange-symbol-list.
type TickerInfo struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Country  string `json:"Country"`
	Exchange string `json:"Exchange"`
	Currency string `json:"Currency"`
	Type     string `json:"Type"`
	Isin     string `json:"Isin"`
}

// ListInstruments returns the exchange listing for the class. Any transport
// failure or non-2xx answer is reported as port.ErrProviderUnavailable.
func (c *Client) ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error) {
	exchange, err := c.exchangeFor(class)
	if err != nil {
		return nil, err
	}

	var content []TickerInfo
	if err := c.getJSON(ctx, "/exchange-symbol-list/"+url.PathEscape(exchange), nil, &content); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", port.ErrProviderUnavailable, class, err)
	}

	out := make([]model.Instrument, 0, len(content))
	for _, info := range content {
		symbol := strings.ToUpper(strings.TrimSpace(info.Code))
		if symbol == "" {
			continue
		}
		if class == model.AssetClassEquity && !c.keepType(info.Type) {
			continue
		}
		out = append(out, model.Instrument{
			AssetClass:   class,
			Symbol:       symbol,
			ProviderCode: Code,
			Name:         strings.TrimSpace(info.Name),
			Exchange:     info.Exchange,
			Currency:     info.Currency,
			Country:      info.Country,
			Type:         info.Type,
			ISIN:         info.Isin,
		})
	}
	log.Debug().
		Str("asset_class", string(class)).
		Int("listed", len(content)).
		Int("kept", len(out)).
		Msg("eodhd listing fetched")
	return out, nil
}

// eodBar is one row of /eod/{ticker}.
type eodBar struct {
	Date          string      `json:"date"`
	Open          jsonDecimal `json:"open"`
	High          jsonDecimal `json:"high"`
	Low           jsonDecimal `json:"low"`
	Close         jsonDecimal `json:"close"`
	AdjustedClose jsonDecimal `json:"adjusted_close"`
	Volume        jsonDecimal `json:"volume"`
}

// FetchSeries returns daily bars; the range bounds are inclusive.
func (c *Client) FetchSeries(ctx context.Context, inst model.Instrument, hint model.RangeHint) ([]model.PriceBar, error) {
	exchange, err := c.exchangeFor(inst.AssetClass)
	if err != nil {
		return nil, err
	}
	ticker := inst.Symbol + "." + exchange

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !hint.From.IsZero() {
		params.Set("from", hint.From.UTC().Format(dateLayout))
	}
	if !hint.To.IsZero() {
		params.Set("to", hint.To.UTC().Format(dateLayout))
	}

	var content []eodBar
	if err := c.getJSON(ctx, "/eod/"+url.PathEscape(ticker), params, &content); err != nil {
		return nil, fmt.Errorf("eod %s: %w", ticker, err)
	}

	out := make([]model.PriceBar, 0, len(content))
	for _, row := range content {
		day, err := time.ParseInLocation(dateLayout, row.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("eod %s: invalid date %q: %w", ticker, row.Date, err)
		}
		adj := row.AdjustedClose.Decimal
		if !row.AdjustedClose.Valid {
			adj = row.Close.Decimal
		}
		out = append(out, model.PriceBar{
			InstrumentID:  inst.ID,
			Timestamp:     day.UnixMilli(),
			Open:          row.Open.Decimal,
			High:          row.High.Decimal,
			Low:           row.Low.Decimal,
			Close:         row.Close.Decimal,
			AdjustedClose: adj,
			Volume:        row.Volume.Decimal,
		})
	}
	return out, nil
}

func (c *Client) exchangeFor(class model.AssetClass) (string, error) {
	switch class {
	case model.AssetClassEquity:
		return c.equityExchange, nil
	case model.AssetClassFX:
		return forexExchange, nil
	}
	return "", errors.New("eodhd: unsupported asset class " + string(class))
}

func (c *Client) keepType(t string) bool {
	if c.equityTypes == nil {
		return true
	}
	_, ok := c.equityTypes[strings.ToLower(strings.TrimSpace(t))]
	return ok
}

var _ port.Provider = (*Client)(nil)
