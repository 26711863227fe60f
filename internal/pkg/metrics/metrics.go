package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityplanner",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityplanner",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Planner metrics
	UserMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "planner",
		Name:      "user_markers",
		Help:      "Current number of user-placed markers",
	})

	ActivityMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "planner",
		Name:      "activity_markers",
		Help:      "Current number of activity markers on the map",
	})

	RecommendationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "recommendations",
		Name:      "requests_total",
		Help:      "Finished recommendation requests by outcome",
	}, []string{"outcome"})

	RecommendationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cityplanner",
		Subsystem: "recommendations",
		Name:      "request_duration_seconds",
		Help:      "Duration of recommendation requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})

	RecommendationsRefused = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "recommendations",
		Name:      "refused_total",
		Help:      "Recommendation requests refused before sending",
	}, []string{"reason"})

	RecommendationPlacesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "recommendations",
		Name:      "places_dropped_total",
		Help:      "Recommended places discarded for missing or invalid fields",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Reference recommender metrics
	PlacesServed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cityplanner",
		Subsystem: "recommender",
		Name:      "places_served",
		Help:      "Places returned per recommendation response",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cityplanner",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cityplanner",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
