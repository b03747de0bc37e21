// Package metrics exposes quote engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/icodeforyou/bessquote/quote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "bessquote_"

type Metrics struct {
	gatherer     prometheus.Gatherer
	quotes       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
	deviations   *prometheus.CounterVec
	degradations *prometheus.CounterVec
	broadcasts   *prometheus.CounterVec
}

// New registers the metrics on reg. Use prometheus.NewRegistry in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quotes_total",
				Help: "Quote requests by final state and confidence",
			},
			[]string{"state", "confidence"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "quote_duration_seconds",
				Help:    "Time to compute a quote in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"state"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rejections_total",
				Help: "Rejected quote requests by offending field",
			},
			[]string{"field"},
		),
		deviations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_deviations_total",
				Help: "Applied prices outside the benchmark threshold by equipment",
			},
			[]string{"equipment"},
		),
		degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lookup_degradations_total",
				Help: "Lookups that fell back to a default by dependency",
			},
			[]string{"dependency"},
		),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcasts_total",
				Help: "Quote summaries sent to listeners by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
	reg.MustRegister(m.quotes, m.latency, m.rejections, m.deviations, m.degradations, m.broadcasts)
	return m
}

// ObserveQuote records the outcome of one ComputeQuote call.
func (m *Metrics) ObserveQuote(resp quote.Response, duration time.Duration) {
	state := string(resp.State)
	m.latency.WithLabelValues(state).Observe(duration.Seconds())

	if resp.Rejection != nil {
		m.quotes.WithLabelValues(state, "").Inc()
		field := resp.Rejection.Field
		if field == "" {
			field = "none"
		}
		m.rejections.WithLabelValues(field).Inc()
		return
	}
	if resp.Quote == nil {
		return
	}

	m.quotes.WithLabelValues(state, string(resp.Quote.Confidence())).Inc()
	p, err := resp.Quote.Payload()
	if err != nil {
		return
	}
	for _, d := range p.Deviations {
		m.deviations.WithLabelValues(d.Equipment).Inc()
	}
	for _, d := range p.Degradations {
		m.degradations.WithLabelValues(d.Dependency).Inc()
	}
}

func (m *Metrics) ObserveBroadcast(channel string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.broadcasts.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
