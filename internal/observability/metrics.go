package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счетчики и гистограммы конвейера приема отчетов
type Metrics struct {
	ReportsSubmitted prometheus.Counter
	ReportsResolved  prometheus.Counter
	ReportsDegraded  prometheus.Counter // отчеты, сохраненные с заглушками

	SubmissionDuration prometheus.Histogram

	// Запросы к внешним сервисам обогащения
	ClassifierRequests *prometheus.CounterVec // labels: outcome={success,no_detection,error}
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,no_result,error}
}

// NewMetrics создает и регистрирует все метрики в реестре Prometheus по умолчанию
func NewMetrics() *Metrics {
	m := &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_api",
			Name:      "reports_submitted_total",
			Help:      "Total hazard reports persisted.",
		}),
		ReportsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_api",
			Name:      "reports_resolved_total",
			Help:      "Total reports moved to the Resolved status.",
		}),
		ReportsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_api",
			Name:      "reports_degraded_total",
			Help:      "Reports persisted with at least one sentinel value.",
		}),
		SubmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_api",
			Name:      "submission_duration_seconds",
			Help:      "Duration of a complete submit-report pipeline run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_api",
			Name:      "classifier_requests_total",
			Help:      "Detection model calls by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_api",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding calls by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.ReportsSubmitted,
		m.ReportsResolved,
		m.ReportsDegraded,
		m.SubmissionDuration,
		m.ClassifierRequests,
		m.GeocodeRequests,
	)

	return m
}

// NewMetricsForTesting создает Metrics без регистрации в глобальном реестре,
// чтобы избежать паники "already registered" при вызове из нескольких тестов
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReportsSubmitted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_api", Name: "reports_submitted_total"}),
		ReportsResolved:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_api", Name: "reports_resolved_total"}),
		ReportsDegraded:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_api", Name: "reports_degraded_total"}),
		SubmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_api", Name: "submission_duration_seconds"}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_api", Name: "classifier_requests_total"}, []string{"outcome"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_api", Name: "geocode_requests_total"}, []string{"outcome"}),
	}
}
