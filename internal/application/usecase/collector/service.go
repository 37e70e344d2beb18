package collector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

type Reconciler interface {
	Reconcile(ctx context.Context, class model.AssetClass, instruments []model.Instrument) (int, error)
}

type Ingestor interface {
	IngestAll(ctx context.Context, class model.AssetClass, instruments []model.Instrument) []model.SymbolRows
}

type ServiceDeps struct {
	Provider   port.Provider
	Reconciler Reconciler
	Ingestor   Ingestor
	Metrics    port.Metrics
	// Allow restricts each asset class to the listed symbols. A missing or
	// empty list keeps everything the provider returns.
	Allow map[model.AssetClass][]string
}

// Service runs one collection pass over both asset classes.
type Service struct {
	deps  ServiceDeps
	allow map[model.AssetClass]map[string]struct{}
}

func NewService(deps ServiceDeps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics()
	}
	allow := make(map[model.AssetClass]map[string]struct{}, len(deps.Allow))
	for class, symbols := range deps.Allow {
		set := make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			if u := strings.ToUpper(strings.TrimSpace(s)); u != "" {
				set[u] = struct{}{}
			}
		}
		if len(set) > 0 {
			allow[class] = set
		}
	}
	return &Service{deps: deps, allow: allow}
}

// Run reconciles reference data and ingests series for equities and FX
// concurrently. A class whose provider listing or catalog read fails yields an
// empty section; the other class is unaffected. Run only errors on a nil
// provider or a cancelled context.
func (s *Service) Run(ctx context.Context) (*model.IngestionReport, error) {
	if s.deps.Provider == nil {
		return nil, errors.New("collector: no provider")
	}

	report := &model.IngestionReport{
		RunID:        uuid.NewString(),
		ProviderCode: s.deps.Provider.Code(),
		StartedAt:    time.Now().UTC(),
	}

	Enter(StageReconcilingReferenceData)
	sections := make(map[model.AssetClass][]model.SymbolRows, len(model.AssetClasses))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, class := range model.AssetClasses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows := s.collectClass(ctx, class)
			mu.Lock()
			sections[class] = rows
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, class := range model.AssetClasses {
		report.SetSection(class, sections[class])
	}
	report.FinishedAt = time.Now().UTC()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	Enter(StageReported)
	log.Info().
		Str("run_id", report.RunID).
		Str("provider", report.ProviderCode).
		Int("equities", len(report.Equities)).
		Int("fx", len(report.FX)).
		Int("rows", report.TotalRows()).
		Int("failures", report.Failures()).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("collection finished")
	return report, nil
}

func (s *Service) collectClass(ctx context.Context, class model.AssetClass) []model.SymbolRows {
	lg := log.With().Str("asset_class", string(class)).Logger()

	start := time.Now()
	listed, err := s.deps.Provider.ListInstruments(ctx, class)
	if err != nil {
		if errors.Is(err, port.ErrProviderUnavailable) {
			s.deps.Metrics.ProviderUnavailable(class)
			lg.Warn().Err(err).Msg("provider unavailable, skipping asset class")
		} else {
			lg.Error().Err(err).Msg("listing instruments failed, skipping asset class")
		}
		return nil
	}
	instruments := model.UniqueBySymbol(class, s.filter(class, listed))

	if _, err := s.deps.Reconciler.Reconcile(ctx, class, instruments); err != nil {
		lg.Error().Err(err).Msg("reconcile failed, skipping asset class")
		return nil
	}
	s.deps.Metrics.StageDuration("reconcile_"+strings.ToLower(string(class)), time.Since(start))

	EnterClass(StageIngestingSeries, class)
	start = time.Now()
	rows := s.deps.Ingestor.IngestAll(ctx, class, instruments)
	s.deps.Metrics.StageDuration("series_"+strings.ToLower(string(class)), time.Since(start))
	return rows
}

func (s *Service) filter(class model.AssetClass, in []model.Instrument) []model.Instrument {
	set, ok := s.allow[class]
	if !ok {
		return in
	}
	out := make([]model.Instrument, 0, len(set))
	for _, inst := range in {
		if _, keep := set[strings.ToUpper(inst.Symbol)]; keep {
			out = append(out, inst)
		}
	}
	return out
}
