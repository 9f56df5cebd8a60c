// Package metrics exposes Prometheus metrics for the ingestion loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "birdcam"

// Metrics holds the loop counters and the registry they are exported from.
type Metrics struct {
	FramesProcessed   prometheus.Counter
	Detections        *prometheus.CounterVec
	Events            *prometheus.CounterVec
	PersistFailures   *prometheus.CounterVec
	ListenerFailures  *prometheus.CounterVec
	InferenceDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New creates the metrics and registers them, with the Go and process collectors, on a
// fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames pulled from the source and run through the detector.",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualifying_detections_total",
			Help:      "Detections above the confidence threshold, by target class.",
		}, []string{"class"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Evidence events emitted by the presence engine, by target class.",
		}, []string{"class"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Evidence events whose image could not be written, by target class.",
		}, []string{"class"}),
		ListenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Evidence notifications that a listener rejected, by listener.",
		}, []string{"listener"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent in the detector per frame.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
	}

	for _, c := range []prometheus.Collector{
		m.FramesProcessed,
		m.Detections,
		m.Events,
		m.PersistFailures,
		m.ListenerFailures,
		m.InferenceDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register metrics")
		}
	}
	return m, nil
}

// Registry returns the registry holding every birdcam metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveInference records one detector call.
func (m *Metrics) ObserveInference(d time.Duration) {
	m.InferenceDuration.Observe(d.Seconds())
}
