package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wasmjsapi"

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	Compilations    *prometheus.CounterVec
	Validations     *prometheus.CounterVec
	Instantiations  *prometheus.CounterVec
	ImportsResolved *prometheus.CounterVec
	ActiveContexts  prometheus.Gauge
	CompileDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Compilations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "engine",
				Name:      "compilations_total",
				Help:      "Module compilations by result",
			},
			[]string{"result"},
		),
		Validations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "engine",
				Name:      "validations_total",
				Help:      "Module validations by outcome",
			},
			[]string{"valid"},
		),
		Instantiations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "engine",
				Name:      "instantiations_total",
				Help:      "Module instantiations by result",
			},
			[]string{"result"},
		),
		ImportsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "linker",
				Name:      "imports_resolved_total",
				Help:      "Imports bound during linking by kind",
			},
			[]string{"kind"},
		),
		ActiveContexts: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "engine",
				Name:      "active_contexts",
				Help:      "Execution contexts currently entered",
			},
		),
		CompileDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "engine",
				Name:      "compile_duration_seconds",
				Help:      "Time spent compiling modules",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
