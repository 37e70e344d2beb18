package port

import (
	"time"

	"mktdata/internal/domain/model"
)

// Metrics receives ingestion counters. Implementations must be safe for concurrent use.
type Metrics interface {
	InstrumentsUpserted(class model.AssetClass, n int)
	BarsUpserted(class model.AssetClass, n int)
	InstrumentFailed(class model.AssetClass, stage string)
	ProviderUnavailable(class model.AssetClass)
	StageDuration(stage string, d time.Duration)
}

type noopMetrics struct{}

// NoopMetrics discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) InstrumentsUpserted(model.AssetClass, int) {}
func (noopMetrics) BarsUpserted(model.AssetClass, int)        {}
func (noopMetrics) InstrumentFailed(model.AssetClass, string) {}
func (noopMetrics) ProviderUnavailable(model.AssetClass)      {}
func (noopMetrics) StageDuration(string, time.Duration)       {}
