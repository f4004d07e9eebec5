// Package observability holds the Prometheus collectors shared by the service.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of imagery service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"data_type"},
	)

	fetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_failures_total",
			Help: "Failed fetches per data type.",
		},
		[]string{"data_type"},
	)

	searchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Duration of coordinated multi-type searches.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"kind"},
	)

	dedupRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_dedup_removed_total",
			Help: "Detections dropped because a cluster already represents them.",
		},
	)

	viewTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_transitions_total",
			Help: "View mode transitions.",
		},
		[]string{"from", "to"},
	)

	responseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_total",
			Help: "Response cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	renderDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_stale_dropped_total",
			Help: "Render events dropped because a newer search was already applied.",
		},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Change events consumed, by data type and result.",
		},
		[]string{"data_type", "result"},
	)

	invalidatedKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidated_keys_total",
			Help: "Response cache keys evicted by change events.",
		},
		[]string{"data_type"},
	)

	consumerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		fetchFailuresTotal, searchDurationSeconds, dedupRemovedTotal,
		viewTransitionsTotal, responseCacheTotal, cacheOpTotal, redisOpDuration,
		renderDroppedTotal, invalidationsTotal, invalidatedKeysTotal,
		consumerErrorsTotal, buildInfo,
	}
}

func init() {
	Init(prometheus.DefaultRegisterer, true)
}

// Init registers the collectors on reg. Registering twice on the same registry is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if reg == nil || !enabled {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(dataType string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(dataType).Observe(durationSeconds)
}

func IncFetchFailure(dataType string) {
	fetchFailuresTotal.WithLabelValues(dataType).Inc()
}

func ObserveSearch(kind string, durationSeconds float64) {
	searchDurationSeconds.WithLabelValues(kind).Observe(durationSeconds)
}

func AddDedupRemoved(n int) {
	if n > 0 {
		dedupRemovedTotal.Add(float64(n))
	}
}

func IncViewTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	viewTransitionsTotal.WithLabelValues(from, to).Inc()
}

func IncResponseCache(tier string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	responseCacheTotal.WithLabelValues(tier, outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncRenderDropped() {
	renderDroppedTotal.Inc()
}

func ObserveInvalidation(dataType string, keys int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	invalidationsTotal.WithLabelValues(dataType, result).Inc()
	if keys > 0 {
		invalidatedKeysTotal.WithLabelValues(dataType).Add(float64(keys))
	}
}

func IncConsumerError(kind string) {
	consumerErrorsTotal.WithLabelValues(kind).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
