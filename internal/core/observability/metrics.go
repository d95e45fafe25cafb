package observability

import (
	"errors"
	"strconv"
	"time"

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
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"method", "route", "status"},
	)

	renderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_config_render_total",
			Help: "Layer config renders by outcome.",
		},
		[]string{"outcome"},
	)

	renderDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layer_config_render_duration_seconds",
			Help:    "Time to load and render a layer config document.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Config cache results by tier and outcome.",
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

	redisOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Invalidation events by kind, op and result.",
		},
		[]string{"kind", "op", "result"},
	)

	invalidatedLayersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidated_layers_total",
			Help: "Layers whose cached configs were dropped.",
		},
	)

	warmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "layer_config_warmed_total",
			Help: "Documents re-rendered right after invalidation because the layer was hot.",
		},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	invalidationLagSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invalidation_lag_seconds",
			Help: "Age of the last consumed invalidation message.",
		},
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
		httpRequestsTotal, httpRequestDurationSeconds,
		renderTotal, renderDurationSeconds,
		cacheResults, cacheOpTotal, redisOpDurationSeconds,
		invalidationsTotal, invalidatedLayersTotal, warmedTotal, kafkaConsumerErrors, invalidationLagSeconds,
	}
}

func init() {
	register(prometheus.DefaultRegisterer)
	prometheus.MustRegister(buildInfo)
}

// Init additionally registers the service metrics on reg. Build info is left
// to the registry owner, see metrics.Provider.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	register(reg)
}

func register(reg prometheus.Registerer) {
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

func ObserveRender(outcome string, d time.Duration) {
	renderTotal.WithLabelValues(outcome).Inc()
	renderDurationSeconds.Observe(d.Seconds())
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveInvalidation(kind, op string, layers int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	invalidationsTotal.WithLabelValues(kind, op, result).Inc()
	if layers > 0 {
		invalidatedLayersTotal.Add(float64(layers))
	}
}

func AddWarmed(n int) {
	warmedTotal.Add(float64(n))
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func SetInvalidationLagSeconds(v float64) {
	invalidationLagSeconds.Set(v)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
