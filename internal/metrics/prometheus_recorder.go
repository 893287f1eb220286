package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	outcomes        *prom.CounterVec
	fetchErrors     *prom.CounterVec
	rewriteDuration prom.Histogram
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry with Go and process collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	pr := &PrometheusRecorder{
		reg: reg,
		outcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "oembedder",
			Name:      "embeds_total",
			Help:      "Link resolutions by provider and outcome",
		}, []string{"provider", "outcome"}),
		fetchErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "oembedder",
			Name:      "fetch_errors_total",
			Help:      "Non-success HTTP statuses returned by oEmbed endpoints",
		}, []string{"status"}),
		rewriteDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "oembedder",
			Name:      "rewrite_duration_seconds",
			Help:      "Time spent rewriting one document",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.outcomes, pr.fetchErrors, pr.rewriteDuration)
	return pr
}

func (p *PrometheusRecorder) IncOutcome(provider string, outcome Outcome) {
	if p == nil {
		return
	}
	p.outcomes.WithLabelValues(provider, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFetchError(status int) {
	if p == nil {
		return
	}
	p.fetchErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (p *PrometheusRecorder) ObserveRewriteDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.rewriteDuration.Observe(d.Seconds())
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
