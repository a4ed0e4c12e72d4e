package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	locationUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "location_updates_total",
			Help: "Location pings applied to the geo cache",
		},
	)

	nearbyQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nearby_queries_total",
			Help: "Proximity searches served",
		},
	)

	orderEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_total",
			Help: "Order lifecycle events published",
		},
		[]string{"type"},
	)

	wsConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Open websocket channels by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		locationUpdatesTotal,
		nearbyQueriesTotal,
		orderEventsTotal,
		wsConnectionsActive,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request counts and latency per route template.
// Websocket routes bypass it: the recorder would hide the Hijacker the
// upgrader needs.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				handler = tmpl
			}
		}
		if isWebsocketRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(handler, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
	})
}

func isWebsocketRequest(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}
