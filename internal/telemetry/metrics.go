package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_publish_total",
			Help: "Total config publish attempts",
		},
		[]string{"environment", "result"},
	)
	ConfigVersion = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "config_version",
			Help: "Config version currently served by the decision fleet, per environment",
		},
		[]string{"environment"},
	)
	PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "config_poll_duration_seconds",
		Help:    "Time spent fetching and parsing a config snapshot from the object store",
		Buckets: prometheus.DefBuckets,
	})
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Total assignment decisions served",
		},
		[]string{"environment", "result"},
	)
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, PublishTotal, ConfigVersion, PollDuration, DecisionsTotal)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
