package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes recorded in forumrelay_webhooks_total.
const (
	outcomeDelivered      = "delivered"
	outcomeMalformed      = "malformed"
	outcomeUnparseable    = "unparseable"
	outcomeDispatchFailed = "dispatch_failed"
	outcomeUnauthorized   = "unauthorized"
	outcomeForbidden      = "forbidden"
)

// relayMetrics owns a private registry so several gateways can coexist in one
// process (tests) without duplicate-registration panics.
type relayMetrics struct {
	registry    *prometheus.Registry
	webhooks    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	dispatchDur prometheus.Histogram
	probes      *prometheus.CounterVec
}

func newRelayMetrics() *relayMetrics {
	m := &relayMetrics{registry: prometheus.NewRegistry()}
	m.webhooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumrelay",
		Name:      "webhooks_total",
		Help:      "Inbound forum webhooks by route and outcome",
	}, []string{"route", "outcome"})
	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumrelay",
		Name:      "rate_limited_total",
		Help:      "Webhook requests rejected by the per-IP rate limiter",
	}, []string{"route"})
	m.dispatchDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forumrelay",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent sending one message to NapCat",
		Buckets:   prometheus.DefBuckets,
	})
	m.probes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumrelay",
		Name:      "probe_total",
		Help:      "Scheduled NapCat connection probes by result",
	}, []string{"result"})

	m.registry.MustRegister(
		m.webhooks, m.rateLimited, m.dispatchDur, m.probes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *relayMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
