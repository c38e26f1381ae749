package ga

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics reports the progress of a search.
type Metrics struct {
	Evaluations        prometheus.Counter
	Failures           prometheus.Counter
	EvaluationDuration prometheus.Histogram
	Generation         prometheus.Gauge
	GenerationMin      prometheus.Gauge
	BestCost           prometheus.Gauge
}

// NewMetrics registers the search metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "spl_ga_evaluations_total",
			Help: "Total number of individual evaluations.",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "spl_ga_evaluation_failures_total",
			Help: "Total number of evaluations which failed and were scored +Inf.",
		}),
		EvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spl_ga_evaluation_duration_seconds",
			Help:    "Duration of one evaluation in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		Generation: f.NewGauge(prometheus.GaugeOpts{
			Name: "spl_ga_generation",
			Help: "Last completed generation.",
		}),
		GenerationMin: f.NewGauge(prometheus.GaugeOpts{
			Name: "spl_ga_generation_min_cost",
			Help: "Lowest cost of the last completed generation.",
		}),
		BestCost: f.NewGauge(prometheus.GaugeOpts{
			Name: "spl_ga_best_cost",
			Help: "Lowest cost found so far.",
		}),
	}
}

func (m *Metrics) observeEvaluation(d time.Duration, err error) {
	m.Evaluations.Inc()
	m.EvaluationDuration.Observe(d.Seconds())
	if err != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) observeGeneration(g Generation) {
	m.Generation.Set(float64(g.Number))
	if !math.IsInf(g.Min, 0) {
		m.GenerationMin.Set(g.Min)
	}
	if !math.IsInf(g.BestSoFar, 0) {
		m.BestCost.Set(g.BestSoFar)
	}
}

// Handler returns the metrics HTTP handler of the provided gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
