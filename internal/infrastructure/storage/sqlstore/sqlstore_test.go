package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
	"mktdata/internal/infrastructure/storage"
	"mktdata/internal/infrastructure/storage/migrate"
	"mktdata/internal/infrastructure/storage/sqlite"
)

func openMigratedDB(t *testing.T) *storage.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrate.NewRunner(db, migrate.NewLedger(db), migrate.Migrations()).ApplyPending(ctx)
	require.NoError(t, err)
	return db
}

func bar(inst model.Instrument, ts int64, closePx string) model.PriceBar {
	c := decimal.RequireFromString(closePx)
	return model.PriceBar{
		InstrumentID:  inst.ID,
		Timestamp:     ts,
		Open:          c,
		High:          c,
		Low:           c,
		Close:         c,
		AdjustedClose: c,
		Volume:        decimal.NewFromInt(100),
	}
}

func TestCatalogUpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepo(openMigratedDB(t))

	inst := &model.Instrument{AssetClass: model.AssetClassEquity, Symbol: "AAPL", ProviderCode: "EODHD", Name: "Apple Inc", Currency: "USD"}
	require.NoError(t, repo.UpsertInstrument(ctx, inst))
	firstID := inst.ID
	require.NotEmpty(t, firstID.String())

	changed := &model.Instrument{AssetClass: model.AssetClassEquity, Symbol: "AAPL", ProviderCode: "EODHD", Name: "Apple Inc.", Currency: "USD"}
	require.NoError(t, repo.UpsertInstrument(ctx, changed))
	assert.Equal(t, firstID, changed.ID)

	got, err := repo.GetInstrument(ctx, model.AssetClassEquity, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", got.Name)

	all, err := repo.ListInstruments(ctx, model.AssetClassEquity)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	fx, err := repo.ListInstruments(ctx, model.AssetClassFX)
	require.NoError(t, err)
	assert.Empty(t, fx)
}

func TestCatalogGetMissing(t *testing.T) {
	repo := NewCatalogRepo(openMigratedDB(t))
	_, err := repo.GetInstrument(context.Background(), model.AssetClassFX, "EURUSD")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestSeriesUpsertInsertsThenOverwrites(t *testing.T) {
	ctx := context.Background()
	db := openMigratedDB(t)
	catalog := NewCatalogRepo(db)
	series := NewSeriesRepo(db)

	inst := &model.Instrument{AssetClass: model.AssetClassEquity, Symbol: "NVDA", ProviderCode: "EODHD"}
	require.NoError(t, catalog.UpsertInstrument(ctx, inst))

	_, ok, err := series.LatestBarTime(ctx, inst.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := series.UpsertBars(ctx, []model.PriceBar{bar(*inst, 1000, "100.5"), bar(*inst, 2000, "101")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// same values again: nothing changes
	n, err = series.UpsertBars(ctx, []model.PriceBar{bar(*inst, 2000, "101")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// correction of an existing bar
	n, err = series.UpsertBars(ctx, []model.PriceBar{bar(*inst, 2000, "99.75")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := series.CountBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := series.GetBar(ctx, inst.ID, 2000)
	require.NoError(t, err)
	assert.True(t, got.Close.Equal(decimal.RequireFromString("99.75")), "close = %s", got.Close)

	latest, ok, err := series.LatestBarTime(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2000), latest)
}

func TestSeriesUpsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := openMigratedDB(t)
	catalog := NewCatalogRepo(db)
	series := NewSeriesRepo(db)

	inst := &model.Instrument{AssetClass: model.AssetClassFX, Symbol: "EURUSD", ProviderCode: "EODHD"}
	require.NoError(t, catalog.UpsertInstrument(ctx, inst))

	orphan := model.Instrument{ID: uuid.New()}
	_, err := series.UpsertBars(ctx, []model.PriceBar{bar(*inst, 1000, "1.08"), bar(orphan, 1000, "1.09")})
	require.Error(t, err, "foreign key must reject the unknown instrument")

	count, err := series.CountBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertBarSQLPerDialect(t *testing.T) {
	assert.Contains(t, upsertBarSQL(storage.DialectSQLite), "price_bars.close IS NOT excluded.close")
	assert.Contains(t, upsertBarSQL(storage.DialectPostgres), "price_bars.close IS DISTINCT FROM excluded.close")
}

func TestSeriesKeepsFullDecimalPrecision(t *testing.T) {
	ctx := context.Background()
	db := openMigratedDB(t)
	catalog := NewCatalogRepo(db)
	series := NewSeriesRepo(db)

	inst := &model.Instrument{AssetClass: model.AssetClassFX, Symbol: "EURUSD", ProviderCode: "EODHD"}
	require.NoError(t, catalog.UpsertInstrument(ctx, inst))

	b := bar(*inst, 1000, "1.0823456789012345678")
	b.Volume = decimal.RequireFromString("98765432109876543210")
	n, err := series.UpsertBars(ctx, []model.PriceBar{b})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := series.GetBar(ctx, inst.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, "1.0823456789012345678", got.Close.String())
	assert.Equal(t, "98765432109876543210", got.Volume.String())

	n, err = series.UpsertBars(ctx, []model.PriceBar{b})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// a change past float64 precision still counts
	b.Close = decimal.RequireFromString("1.0823456789012345679")
	n, err = series.UpsertBars(ctx, []model.PriceBar{b})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
