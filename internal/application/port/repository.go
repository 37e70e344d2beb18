package port

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"mktdata/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// CatalogRepository stores instruments keyed by (asset class, symbol).
type CatalogRepository interface {
	ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error)
	// GetInstrument returns ErrNotFound when the key is absent.
	GetInstrument(ctx context.Context, class model.AssetClass, symbol string) (*model.Instrument, error)
	// UpsertInstrument inserts or updates by key and fills inst.ID with the stored id.
	UpsertInstrument(ctx context.Context, inst *model.Instrument) error
}

// SeriesRepository stores price bars keyed by (instrument id, timestamp).
type SeriesRepository interface {
	// LatestBarTime returns the newest stored timestamp; ok is false when none exist.
	LatestBarTime(ctx context.Context, instrumentID uuid.UUID) (ts int64, ok bool, err error)
	// UpsertBars writes all bars atomically and returns how many rows were inserted or changed.
	UpsertBars(ctx context.Context, bars []model.PriceBar) (int, error)
}
