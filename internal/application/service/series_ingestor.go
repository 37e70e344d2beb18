package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

const (
	defaultLookback    = 365 * 24 * time.Hour
	defaultConcurrency = 4
)

type SeriesIngestorConfig struct {
	// Lookback bounds the first fetch of an instrument with no stored bars.
	Lookback time.Duration
	// Concurrency caps parallel fetches within one asset class.
	Concurrency int
}

// SeriesIngestor fetches and upserts historical bars per instrument.
type SeriesIngestor struct {
	provider port.Provider
	catalog  port.CatalogRepository
	series   port.SeriesRepository
	metrics  port.Metrics
	cfg      SeriesIngestorConfig
	now      func() time.Time
}

func NewSeriesIngestor(
	provider port.Provider,
	catalog port.CatalogRepository,
	series port.SeriesRepository,
	metrics port.Metrics,
	cfg SeriesIngestorConfig,
) *SeriesIngestor {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if metrics == nil {
		metrics = port.NoopMetrics()
	}
	return &SeriesIngestor{
		provider: provider,
		catalog:  catalog,
		series:   series,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// IngestSeries upserts one instrument's bars and returns the rows written.
// The range starts at the newest stored bar (inclusive) so a provider
// correction of that bar is picked up.
func (s *SeriesIngestor) IngestSeries(ctx context.Context, inst model.Instrument) (int, error) {
	stored, err := s.catalog.GetInstrument(ctx, inst.AssetClass, inst.Symbol)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	hint := model.RangeHint{From: now.Add(-s.cfg.Lookback), To: now}
	latest, ok, err := s.series.LatestBarTime(ctx, stored.ID)
	if err != nil {
		return 0, err
	}
	if ok {
		hint.From = time.UnixMilli(latest).UTC()
	}

	bars, err := s.provider.FetchSeries(ctx, *stored, hint)
	if err != nil {
		return 0, fmt.Errorf("fetch series: %w", err)
	}
	for i := range bars {
		bars[i].InstrumentID = stored.ID
	}
	n, err := s.series.UpsertBars(ctx, bars)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// IngestAll ingests every instrument independently. A failure is logged and
// reported as zero rows for that instrument; it never stops the others.
// Results keep the input order.
func (s *SeriesIngestor) IngestAll(ctx context.Context, class model.AssetClass, instruments []model.Instrument) []model.SymbolRows {
	results := make([]model.SymbolRows, len(instruments))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, inst := range instruments {
		inst.AssetClass = class
		g.Go(func() error {
			results[i] = s.ingestOne(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += r.RowsUpserted
	}
	s.metrics.BarsUpserted(class, total)
	return results
}

func (s *SeriesIngestor) ingestOne(ctx context.Context, inst model.Instrument) (row model.SymbolRows) {
	row.Symbol = inst.Symbol
	defer func() {
		if p := recover(); p != nil {
			row.RowsUpserted = 0
			row.Err = fmt.Sprintf("panic: %v", p)
			log.Error().
				Str("asset_class", string(inst.AssetClass)).
				Str("symbol", inst.Symbol).
				Interface("panic", p).
				Msg("series ingestion panicked")
			s.metrics.InstrumentFailed(inst.AssetClass, "series")
		}
	}()

	start := time.Now()
	n, err := s.IngestSeries(ctx, inst)
	if err != nil {
		log.Warn().
			Str("asset_class", string(inst.AssetClass)).
			Str("symbol", inst.Symbol).
			Err(err).
			Msg("series ingestion failed")
		s.metrics.InstrumentFailed(inst.AssetClass, "series")
		row.Err = err.Error()
		return row
	}
	log.Debug().
		Str("asset_class", string(inst.AssetClass)).
		Str("symbol", inst.Symbol).
		Int("rows", n).
		Dur("took", time.Since(start)).
		Msg("series ingested")
	row.RowsUpserted = n
	return row
}
