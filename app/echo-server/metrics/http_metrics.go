package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP requests by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	WinnerFeedDropped = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "winners_feed_dropped_total",
		Help: "Win events dropped because the feed buffer was full",
	}, func() float64 { return float64(droppedFn()) })
)

var (
	once      sync.Once
	droppedMu sync.RWMutex
	dropped   func() int64
)

func droppedFn() int64 {
	droppedMu.RLock()
	defer droppedMu.RUnlock()
	if dropped == nil {
		return 0
	}
	return dropped()
}

// Init registers the HTTP collectors once per process. feedDropped reports
// the winners feed drop counter and may be nil.
func Init(feedDropped func() int64) {
	droppedMu.Lock()
	dropped = feedDropped
	droppedMu.Unlock()

	once.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, WinnerFeedDropped)
	})
}

// Middleware records latency and status per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}

			RequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			RequestTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
