// Package metrics exposes prometheus instruments for the frontier and
// implements the storage layer's observation hook.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Put results used as label values.
const (
	ResultAcked   = "acked"
	ResultDropped = "dropped"
)

// Metrics bundles the frontier's prometheus instruments. It implements
// pebblestore.MetricsHook for the storage observation points.
type Metrics struct {
	registry *prometheus.Registry

	URLsPut  *prometheus.CounterVec
	URLsSent prometheus.Counter

	storeWriteSeconds  prometheus.Histogram
	storeReadSeconds   prometheus.Histogram
	storeCommitSeconds prometheus.Histogram
	storeWriteBytes    prometheus.Counter
	storeReadBytes     prometheus.Counter
}

// New creates and registers the instrument set on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		URLsPut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "urlfrontier_urls_put_total",
			Help: "URLs received on the put stream, by outcome.",
		}, []string{"result"}),
		URLsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfrontier_urls_sent_total",
			Help: "URLs handed out to crawlers.",
		}),
		storeWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "urlfrontier_store_write_seconds",
			Help:    "Latency of single-key store writes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		storeReadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "urlfrontier_store_read_seconds",
			Help:    "Latency of single-key store reads.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		storeCommitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "urlfrontier_store_commit_seconds",
			Help:    "Latency of batch commits.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		storeWriteBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfrontier_store_write_bytes_total",
			Help: "Bytes written to the store.",
		}),
		storeReadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfrontier_store_read_bytes_total",
			Help: "Bytes read from the store.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.URLsPut, m.URLsSent,
		m.storeWriteSeconds, m.storeReadSeconds, m.storeCommitSeconds,
		m.storeWriteBytes, m.storeReadBytes,
	)
	return m
}

// RegisterQueueGauge exposes the live queue count from the given callback.
func (m *Metrics) RegisterQueueGauge(count func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "urlfrontier_queues",
		Help: "Number of registered queues.",
	}, count))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveWrite implements pebblestore.MetricsHook.
func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.storeWriteSeconds.Observe(elapsed.Seconds())
	m.storeWriteBytes.Add(float64(bytes))
}

// ObserveRead implements pebblestore.MetricsHook.
func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storeReadSeconds.Observe(elapsed.Seconds())
	m.storeReadBytes.Add(float64(bytes))
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps, bytes int) {
	m.storeCommitSeconds.Observe(elapsed.Seconds())
	m.storeWriteBytes.Add(float64(bytes))
}
