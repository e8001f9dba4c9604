package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "mnemo/backend/pkg/errors"
)

// Metrics provides Prometheus metrics collection for store operations
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_graph_operations_total",
			Help: "Total number of graph store operations by type and status",
		},
		[]string{"operation", "status"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemo_graph_operation_duration_seconds",
			Help:    "Duration of graph store operations by type",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"operation"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_graph_errors_total",
			Help: "Total number of graph store errors by operation and kind",
		},
		[]string{"operation", "kind"},
	)

	registry.MustRegister(operationsTotal)
	registry.MustRegister(operationDuration)
	registry.MustRegister(errorsTotal)

	return &Metrics{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
		registry:          registry,
	}
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) record(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.errorsTotal.WithLabelValues(operation, string(apperrors.KindOf(err))).Inc()
	}
}
