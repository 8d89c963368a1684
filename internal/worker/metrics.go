package worker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mimic/internal/jobs"
)

// Metrics exposes worker counters on a private registry so tests can
// run multiple workers without collisions.
type Metrics struct {
	registry    *prometheus.Registry
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
	vramFreeMB  prometheus.Gauge
	jobsPending prometheus.Gauge
}

// NewMetrics builds and registers the worker metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_jobs_total",
			Help: "Jobs finished by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mimic_job_duration_seconds",
			Help:    "Wall-clock duration of finished jobs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		vramFreeMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mimic_vram_free_mb",
			Help: "Free accelerator memory after the most recent probe.",
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mimic_jobs_pending",
			Help: "Jobs waiting in the queue at the last poll.",
		}),
	}
	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.vramFreeMB, m.jobsPending)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob records one finished job.
func (m *Metrics) ObserveJob(status jobs.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(string(status)).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

// SetVRAMFree records the latest free-memory probe.
func (m *Metrics) SetVRAMFree(freeMB int) {
	if m == nil {
		return
	}
	m.vramFreeMB.Set(float64(freeMB))
}

// SetPending records the current queue depth.
func (m *Metrics) SetPending(count int) {
	if m == nil {
		return
	}
	m.jobsPending.Set(float64(count))
}
