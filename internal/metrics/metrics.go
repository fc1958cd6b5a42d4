package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	lineChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifmatos_line_checks_total",
			Help: "Verification line submissions by outcome.",
		},
		[]string{"outcome"},
	)
	fanoutPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifmatos_fanout_publish_total",
			Help: "Invalidation signals published, by result.",
		},
		[]string{"result"},
	)
	fanoutLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verifmatos_fanout_publish_seconds",
			Help:    "Invalidation publish latency in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "verifmatos_realtime_subscribers",
			Help: "Open realtime subscriptions on this instance.",
		},
	)
)

// Register adds all collectors to the default registry.
func Register() {
	prometheus.MustRegister(httpRequests, httpLatency, lineChecks, fanoutPublishes, fanoutLatency, subscribers)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request counts and latency. pathLabel maps a request to
// a bounded label value; it must not return raw public slugs.
func Instrument(next http.Handler, pathLabel func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		path := pathLabel(r)
		httpRequests.WithLabelValues(r.Method, path, status).Inc()
		httpLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// IncLineCheck counts a line submission; outcome is "ok", "missing",
// "invalid" or "not_found".
func IncLineCheck(outcome string) {
	lineChecks.WithLabelValues(outcome).Inc()
}

// ObserveFanoutPublish records one publish attempt.
func ObserveFanoutPublish(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fanoutPublishes.WithLabelValues(result).Inc()
	fanoutLatency.Observe(d.Seconds())
}

// SubscriberOpened and SubscriberClosed track open subscriptions.
func SubscriberOpened() { subscribers.Inc() }
func SubscriberClosed() { subscribers.Dec() }

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets websocket upgrades pass through the instrumentation.
func (w *statusResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
