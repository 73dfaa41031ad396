// Package metrics exports cache and HTTP metrics to prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xxxsen/ragcache/internal/event"
)

const (
	Namespace          = "ragcache"
	SubsystemCache     = "cache"
	SubsystemEmbedding = "embedding"
	SubsystemAPI       = "api"
)

type Metrics struct {
	registry *prometheus.Registry

	startTime prometheus.Gauge

	cacheEvents    *prometheus.CounterVec
	lookupDistance prometheus.Histogram
	embedEvents    *prometheus.CounterVec
	taskEvents     *prometheus.CounterVec

	apiTime *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "start_timestamp_seconds",
		Help:      "The time the service started.",
	})
	m.startTime.SetToCurrentTime()

	m.cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCache,
		Name:      "events_total",
		Help:      "Response cache events by kind.",
	}, []string{"kind"})
	m.lookupDistance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCache,
		Name:      "lookup_distance",
		Help:      "Cosine distance of the nearest cached query.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
	})
	m.embedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemEmbedding,
		Name:      "events_total",
		Help:      "Embedding cache events by kind.",
	}, []string{"kind"})
	m.taskEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCache,
		Name:      "write_tasks_total",
		Help:      "Background cache write tasks by outcome.",
	}, []string{"kind"})
	m.apiTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemAPI,
		Name:      "time_seconds",
		Help:      "Time to execute the api handler.",
	}, []string{"handler", "method", "status_code"})

	m.registry.MustRegister(m.startTime, m.cacheEvents, m.lookupDistance, m.embedEvents, m.taskEvents, m.apiTime)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterGaugeFunc exports a value read at scrape time, such as the embedding cache size.
func (m *Metrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
	m.apiTime.With(prometheus.Labels{"handler": handler, "method": method, "status_code": statusCode}).Observe(elapsed)
}

// Emit makes Metrics usable as an event sink.
func (m *Metrics) Emit(_ context.Context, ev event.Event) {
	switch ev.Kind {
	case event.KindCacheHit, event.KindCacheMiss:
		m.cacheEvents.WithLabelValues(string(ev.Kind)).Inc()
		if ev.Distance >= 0 && ev.Key != "" {
			m.lookupDistance.Observe(ev.Distance)
		}
	case event.KindLookupError, event.KindStoreOK, event.KindStoreFailed:
		m.cacheEvents.WithLabelValues(string(ev.Kind)).Inc()
	case event.KindEmbedHit, event.KindEmbedMiss, event.KindEmbedRetry, event.KindEviction:
		m.embedEvents.WithLabelValues(string(ev.Kind)).Inc()
	case event.KindTaskAccepted, event.KindTaskDropped, event.KindTaskFailed:
		m.taskEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
}
