package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filestore"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Finished uploads by result.",
	}, []string{"result"})

	uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Bytes committed by successful uploads.",
	})

	progressSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_subscribers",
		Help:      "Live progress channel subscriptions.",
	})

	progressEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_events_total",
		Help:      "Progress events by outcome.",
	}, []string{"outcome"})

	initOnce sync.Once
)

// Progress event outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
	OutcomeReplayed  = "replayed"
	OutcomeCoalesced = "coalesced"
)

// InitMetrics registers collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			uploads,
			uploadBytes,
			progressSubscribers,
			progressEvents,
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpload counts a finished upload; size is added only for successes.
func ObserveUpload(result string, size int64) {
	uploads.WithLabelValues(result).Inc()
	if result == "ok" && size > 0 {
		uploadBytes.Add(float64(size))
	}
}

// SubscriberAdded bumps the live progress subscription gauge.
func SubscriberAdded() { progressSubscribers.Inc() }

// SubscriberRemoved lowers the live progress subscription gauge.
func SubscriberRemoved() { progressSubscribers.Dec() }

// ProgressEvent counts one progress event with the given outcome.
func ProgressEvent(outcome string) {
	progressEvents.WithLabelValues(outcome).Inc()
}
