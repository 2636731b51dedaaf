package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/estateledger/internal/aggregation"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Aggregation metrics
	AggregationDuration *prometheus.HistogramVec
	AggregationRuns     *prometheus.CounterVec
	AggregatedEntries   *prometheus.CounterVec
	Warnings            *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec

	// Classification metrics
	ClassificationRuns          prometheus.Counter
	ClassificationMatched       prometheus.Counter
	ClassificationUnmatched     prometheus.Counter
	ClassificationPatternErrors prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Aggregation metrics
		AggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estateledger_aggregation_duration_seconds",
				Help:    "Duration of aggregation runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		AggregationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estateledger_aggregation_runs_total",
				Help: "Total aggregation runs by scope",
			},
			[]string{"scope"},
		),
		AggregatedEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estateledger_aggregated_entries_total",
				Help: "Entries seen by aggregation runs by outcome",
			},
			[]string{"outcome"},
		),
		Warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estateledger_aggregation_warnings_total",
				Help: "Aggregation warnings by type",
			},
			[]string{"type"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estateledger_aggregation_cache_lookups_total",
				Help: "Aggregate cache lookups by result",
			},
			[]string{"result"},
		),

		// Classification metrics
		ClassificationRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "estateledger_classification_runs_total",
			Help: "Total classification runs",
		}),
		ClassificationMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "estateledger_classification_matched_total",
			Help: "Entries that received a classification suggestion",
		}),
		ClassificationUnmatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "estateledger_classification_unmatched_total",
			Help: "Unreviewed entries no pattern matched",
		}),
		ClassificationPatternErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "estateledger_classification_pattern_errors_total",
			Help: "Malformed counterparty patterns skipped during compilation",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estateledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estateledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "estateledger_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}

// ObserveAggregation records one aggregation run.
func (m *Metrics) ObserveAggregation(scope string, elapsed time.Duration, res *aggregation.Result) {
	m.AggregationDuration.WithLabelValues(scope).Observe(elapsed.Seconds())
	m.AggregationRuns.WithLabelValues(scope).Inc()
	if res == nil {
		return
	}

	m.AggregatedEntries.WithLabelValues("included").Add(float64(res.EntryCount))
	m.AggregatedEntries.WithLabelValues("excluded").Add(float64(res.ExcludedCount))
	m.AggregatedEntries.WithLabelValues("pre_start").Add(float64(res.PreStartCount))
	for _, w := range res.Warnings {
		m.Warnings.WithLabelValues(string(w.Type)).Inc()
	}
}

// ObserveClassification records one classification run.
func (m *Metrics) ObserveClassification(matched, unmatched, patternErrors int) {
	m.ClassificationRuns.Inc()
	m.ClassificationMatched.Add(float64(matched))
	m.ClassificationUnmatched.Add(float64(unmatched))
	m.ClassificationPatternErrors.Add(float64(patternErrors))
}

// ObserveCache records an aggregate cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
