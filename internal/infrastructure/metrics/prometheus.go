// Package metrics records collection runs in Prometheus form. Samples are
// pushed to a Pushgateway at the end of a run.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

const namespace = "collector"

type Config struct {
	PushgatewayURL string
	Job            string
}

type Metrics struct {
	InstrumentsUpsertedTotal *prometheus.CounterVec
	BarsUpsertedTotal        *prometheus.CounterVec
	InstrumentFailuresTotal  *prometheus.CounterVec
	ProviderUnavailableTotal *prometheus.CounterVec
	StageSeconds             *prometheus.HistogramVec
	LastSuccess              prometheus.Gauge

	registry *prometheus.Registry
	cfg      Config
}

func New(cfg Config) *Metrics {
	if cfg.Job == "" {
		cfg.Job = "mktdata_collector"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cfg:      cfg,
	}

	m.InstrumentsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instruments_upserted_total",
			Help:      "Instrument rows inserted or updated by reconciliation",
		},
		[]string{"asset_class"},
	)
	m.BarsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_upserted_total",
			Help:      "Price bars inserted or changed",
		},
		[]string{"asset_class"},
	)
	m.InstrumentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instrument_failures_total",
			Help:      "Per-instrument failures by stage",
		},
		[]string{"asset_class", "stage"}, // "reconcile", "series"
	)
	m.ProviderUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_unavailable_total",
			Help:      "Asset classes skipped because the provider was unreachable",
		},
		[]string{"asset_class"},
	)
	m.StageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of lifecycle stages",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"stage"},
	)
	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last completed run",
	})

	m.registry.MustRegister(
		m.InstrumentsUpsertedTotal,
		m.BarsUpsertedTotal,
		m.InstrumentFailuresTotal,
		m.ProviderUnavailableTotal,
		m.StageSeconds,
		m.LastSuccess,
	)
	return m
}

func (m *Metrics) InstrumentsUpserted(class model.AssetClass, n int) {
	m.InstrumentsUpsertedTotal.WithLabelValues(string(class)).Add(float64(n))
}

func (m *Metrics) BarsUpserted(class model.AssetClass, n int) {
	m.BarsUpsertedTotal.WithLabelValues(string(class)).Add(float64(n))
}

func (m *Metrics) InstrumentFailed(class model.AssetClass, stage string) {
	m.InstrumentFailuresTotal.WithLabelValues(string(class), stage).Inc()
}

func (m *Metrics) ProviderUnavailable(class model.AssetClass) {
	m.ProviderUnavailableTotal.WithLabelValues(string(class)).Inc()
}

func (m *Metrics) StageDuration(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// MarkSuccess stamps the completion time of a run.
func (m *Metrics) MarkSuccess(t time.Time) {
	m.LastSuccess.Set(float64(t.Unix()))
}

// Enabled reports whether a Pushgateway is configured.
func (m *Metrics) Enabled() bool { return m.cfg.PushgatewayURL != "" }

// Push sends the registry to the Pushgateway. Without a URL it does nothing.
func (m *Metrics) Push(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	if err := push.New(m.cfg.PushgatewayURL, m.cfg.Job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return errors.Join(errors.New("pushgateway push failed"), err)
	}
	return nil
}

var _ port.Metrics = (*Metrics)(nil)
