package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

// Reconciler diffs provider instrument lists against the stored catalog.
type Reconciler struct {
	catalog port.CatalogRepository
	metrics port.Metrics
}

func NewReconciler(catalog port.CatalogRepository, metrics port.Metrics) *Reconciler {
	if metrics == nil {
		metrics = port.NoopMetrics()
	}
	return &Reconciler{catalog: catalog, metrics: metrics}
}

// Reconcile inserts unseen instruments, updates changed ones and skips the rest.
// It returns the number of rows inserted or updated. Instruments missing from
// the provider list are left alone: absence is not a delisting.
func (r *Reconciler) Reconcile(ctx context.Context, class model.AssetClass, instruments []model.Instrument) (int, error) {
	if !class.Valid() {
		return 0, fmt.Errorf("reconcile: unknown asset class %q", class)
	}
	if len(instruments) == 0 {
		return 0, nil
	}
	stored, err := r.catalog.ListInstruments(ctx, class)
	if err != nil {
		return 0, fmt.Errorf("load %s catalog: %w", class, err)
	}
	byKey := make(map[model.InstrumentKey]model.Instrument, len(stored))
	for _, inst := range stored {
		byKey[inst.Key()] = inst
	}

	upserted, inserted := 0, 0
	for _, inst := range model.UniqueBySymbol(class, instruments) {
		existing, found := byKey[inst.Key()]
		if found && existing.SameAttributes(inst) {
			continue
		}
		if found {
			inst.ID = existing.ID
		}
		if err := r.catalog.UpsertInstrument(ctx, &inst); err != nil {
			log.Warn().
				Str("asset_class", string(class)).
				Str("symbol", inst.Symbol).
				Err(err).
				Msg("instrument upsert failed")
			r.metrics.InstrumentFailed(class, "reconcile")
			continue
		}
		byKey[inst.Key()] = inst
		upserted++
		if !found {
			inserted++
		}
	}

	log.Info().
		Str("asset_class", string(class)).
		Int("provider", len(instruments)).
		Int("inserted", inserted).
		Int("updated", upserted-inserted).
		Msg("reference data reconciled")
	r.metrics.InstrumentsUpserted(class, upserted)
	return upserted, nil
}
