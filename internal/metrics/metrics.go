// Package metrics exposes engine counters to Prometheus. A nil *EngineMetrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EngineMetrics struct {
	calls        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	volume       *prometheus.CounterVec
	swapFees     prometheus.Counter
	externalFees prometheus.Counter
	livePools    prometheus.Gauge
	sinkFailures prometheus.Counter
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering them with the
// default Prometheus registry on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = New(prometheus.DefaultRegisterer)
	})
	return engineRegistry
}

// New builds engine metrics registered with reg.
func New(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neoswaps_calls_total",
			Help: "Committed engine calls by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neoswaps_call_failures_total",
			Help: "Rolled back engine calls by operation and error class.",
		}, []string{"op", "class"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neoswaps_trade_volume",
			Help: "Collateral volume of committed trades by operation.",
		}, []string{"op"}),
		swapFees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neoswaps_swap_fees",
			Help: "Swap fees credited to liquidity providers, in collateral units.",
		}),
		externalFees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neoswaps_external_fees",
			Help: "External fees charged on trades, in collateral units.",
		}),
		livePools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "neoswaps_live_pools",
			Help: "Pools deployed and not yet destroyed by this process.",
		}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neoswaps_event_sink_failures_total",
			Help: "Event batches the sink failed to accept after commit.",
		}),
	}
	reg.MustRegister(m.calls, m.failures, m.volume, m.swapFees, m.externalFees, m.livePools, m.sinkFailures)
	return m
}

func (m *EngineMetrics) ObserveCall(op string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op).Inc()
}

func (m *EngineMetrics) ObserveFailure(op, class string) {
	if m == nil {
		return
	}
	if class == "" {
		class = "unknown"
	}
	m.failures.WithLabelValues(op, class).Inc()
}

// ObserveTrade records a trade's collateral volume and fees as floats.
func (m *EngineMetrics) ObserveTrade(op string, volume, swapFees, externalFees float64) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(op).Add(volume)
	m.swapFees.Add(swapFees)
	m.externalFees.Add(externalFees)
}

func (m *EngineMetrics) PoolDeployed() {
	if m == nil {
		return
	}
	m.livePools.Inc()
}

func (m *EngineMetrics) PoolDestroyed() {
	if m == nil {
		return
	}
	m.livePools.Dec()
}

func (m *EngineMetrics) IncSinkFailure() {
	if m == nil {
		return
	}
	m.sinkFailures.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
