package ept

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ept",
	Name:      "buildinfo",
}, []string{"version", "revision"})

var buildTimeMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "ept",
	Name:      "buildtime",
})

func init() {
	if err := prometheus.Register(buildInfoMetric); err != nil {
		log.Println("error registering metric", err)
	}
	if err := prometheus.Register(buildTimeMetric); err != nil {
		log.Println("error registering metric", err)
	}
}

// SetBuildInfo initializes the static build-info metrics.
func SetBuildInfo(version, commit, date string) {
	buildInfoMetric.WithLabelValues(version, commit).Set(1)
	t, err := time.Parse(time.RFC3339, date)
	if err == nil {
		buildTimeMetric.Set(float64(t.Unix()))
	} else {
		buildTimeMetric.Set(0)
	}
}

// Metrics collects the Prometheus instrumentation for a Server: HTTP
// request counts/durations, registry cache hit/miss counts, and bucket
// fetch latency/status, mirroring the teacher's per-scope metrics struct.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	registryRequests *prometheus.CounterVec

	bucketRequests        *prometheus.CounterVec
	bucketRequestDuration *prometheus.HistogramVec
}

func register[K prometheus.Collector](logger *log.Logger, metric K) K {
	if err := prometheus.Register(metric); err != nil {
		logger.Println(err)
	}
	return metric
}

// NewMetrics builds and registers a scoped set of EPT metrics. scope
// becomes the Prometheus subsystem label, letting multiple Servers (e.g.
// one per Caddy site block) coexist without name collisions.
func NewMetrics(scope string, logger *log.Logger) *Metrics {
	namespace := "ept"
	durationBuckets := prometheus.DefBuckets

	return &Metrics{
		requests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "requests_total",
			Help:      "Requests served by route and status",
		}, []string{"route", "status"})),
		requestDuration: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds by route",
			Buckets:   durationBuckets,
		}, []string{"route", "status"})),

		registryRequests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "registry_requests_total",
			Help:      "Registry lookups by hit/miss",
		}, []string{"status"})),

		bucketRequests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "bucket_requests_total",
			Help:      "Requests to the underlying bucket by kind and status",
		}, []string{"kind", "status"})),
		bucketRequestDuration: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "bucket_request_duration_seconds",
			Help:      "Bucket fetch duration in seconds",
			Buckets:   durationBuckets,
		}, []string{"kind", "status"})),
	}
}

type requestTracker struct {
	finished bool
	start    time.Time
	metrics  *Metrics
}

func (m *Metrics) startRequest() *requestTracker {
	return &requestTracker{start: time.Now(), metrics: m}
}

func (r *requestTracker) finish(route, status string) {
	if r.finished {
		return
	}
	r.finished = true
	r.metrics.requests.WithLabelValues(route, status).Inc()
	r.metrics.requestDuration.WithLabelValues(route, status).Observe(time.Since(r.start).Seconds())
}

// observeBucketRequest records one Source.GetBytes call against its backend
// kind ("file", "http", "s3") and outcome.
func (m *Metrics) observeBucketRequest(kind, status string, seconds float64) {
	m.bucketRequests.WithLabelValues(kind, status).Inc()
	m.bucketRequestDuration.WithLabelValues(kind, status).Observe(seconds)
}

func (m *Metrics) registryHit(hit bool) {
	if hit {
		m.registryRequests.WithLabelValues("hit").Inc()
	} else {
		m.registryRequests.WithLabelValues("miss").Inc()
	}
}
