// Package metrics exposes the engine's call-level instrumentation as
// Prometheus series, implementing analytics.Observer so the core engine never
// imports a metrics backend directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements analytics.Observer.
type Collector struct {
	IngestLatency *prometheus.HistogramVec
	SignalLatency *prometheus.HistogramVec
	ActiveSymbols prometheus.Gauge
	SignalsTotal  *prometheus.CounterVec
}

// NewCollector registers and returns a Collector on the default registry.
func NewCollector() *Collector {
	return &Collector{
		IngestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hfsignal_ingest_latency_microseconds",
			Help:    "Latency of AddTrade/AddBook/AddCandle calls, by kind",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"symbol", "kind"}),
		SignalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hfsignal_signal_latency_microseconds",
			Help:    "Latency of GenerateSignal calls",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		}, []string{"symbol"}),
		ActiveSymbols: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hfsignal_active_symbols",
			Help: "Number of symbols with a live analytics engine",
		}),
		SignalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hfsignal_signals_total",
			Help: "Total signals generated, by symbol",
		}, []string{"symbol"}),
	}
}

// ObserveIngest implements analytics.Observer.
func (c *Collector) ObserveIngest(symbol, kind string, d time.Duration) {
	c.IngestLatency.WithLabelValues(symbol, kind).Observe(float64(d.Microseconds()))
}

// ObserveSignal implements analytics.Observer.
func (c *Collector) ObserveSignal(symbol string, d time.Duration) {
	c.SignalLatency.WithLabelValues(symbol).Observe(float64(d.Microseconds()))
	c.SignalsTotal.WithLabelValues(symbol).Inc()
}

// IncActiveSymbols implements analytics.Observer.
func (c *Collector) IncActiveSymbols(delta int) {
	c.ActiveSymbols.Add(float64(delta))
}
