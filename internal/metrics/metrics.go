// Package metrics exposes Prometheus instrumentation for the label
// engine and the recommendation server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects engine and server counters.
type Recorder struct {
	daysLabeled    *prometheus.CounterVec
	daysSkipped    *prometheus.CounterVec
	replays        prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	requestsTotal  *prometheus.CounterVec
	labelDuration  *prometheus.HistogramVec
	bestScore      prometheus.Histogram
	familiesPicked *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return &Recorder{
		daysLabeled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optlabel_days_labeled_total",
				Help: "Trading days labeled successfully",
			},
			[]string{"ticker"},
		),
		daysSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optlabel_days_skipped_total",
				Help: "Trading days skipped, by reason",
			},
			[]string{"reason"},
		),
		replays: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "optlabel_replays_total",
				Help: "Candidate replays executed",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optlabel_errors_total",
				Help: "Errors encountered, by type",
			},
			[]string{"type"},
		),
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optlabel_http_requests_total",
				Help: "HTTP requests served, by route and status",
			},
			[]string{"route", "status"},
		),
		labelDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optlabel_label_duration_seconds",
				Help:    "Time to label one trading day",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"ticker"},
		),
		bestScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optlabel_best_score",
				Help:    "Risk-adjusted score of each day's winning candidate",
				Buckets: prometheus.LinearBuckets(-0.5, 0.1, 15),
			},
		),
		familiesPicked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optlabel_families_picked_total",
				Help: "Winning strategy family per labeled day",
			},
			[]string{"family"},
		),
	}
}

func (r *Recorder) DayLabeled(ticker string, seconds, score float64, family string) {
	r.daysLabeled.WithLabelValues(ticker).Inc()
	r.labelDuration.WithLabelValues(ticker).Observe(seconds)
	r.bestScore.Observe(score)
	r.familiesPicked.WithLabelValues(family).Inc()
}

func (r *Recorder) DaySkipped(reason string) {
	r.daysSkipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) ReplayDone() {
	r.replays.Inc()
}

func (r *Recorder) Error(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) Request(route, status string) {
	r.requestsTotal.WithLabelValues(route, status).Inc()
}
