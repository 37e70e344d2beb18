package port

import (
	"context"
	"errors"

	"mktdata/internal/domain/model"
)

// ErrProviderUnavailable distinguishes "could not reach the provider" from a
// legitimately empty answer.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Provider is the market-data source the collector ingests from.
type Provider interface {
	// Code identifies the data source in reports, e.g. "EODHD".
	Code() string
	// ListInstruments may return an empty slice; unreachable is ErrProviderUnavailable.
	ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error)
	// FetchSeries returns bars in the hinted range. No new bars is not an error.
	FetchSeries(ctx context.Context, inst model.Instrument, hint model.RangeHint) ([]model.PriceBar, error)
}
