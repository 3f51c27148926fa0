// Package metrics exposes Prometheus collectors for the registry and an
// HTTP middleware that records request counts and latencies.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lostfound"

var (
	// ItemsSubmitted counts accepted uploads by category state
	// ("approved" or "pending").
	ItemsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_submitted_total",
		Help:      "Items accepted by the upload form, by category state.",
	}, []string{"state"})

	ItemsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_deleted_total",
		Help:      "Items deleted by their uploader.",
	})

	// HoldsToggled counts watch toggles by resulting state ("held" or
	// "released").
	HoldsToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "holds_toggled_total",
		Help:      "Watch toggles by resulting state.",
	}, []string{"state"})

	CategoriesPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "categories_promoted_total",
		Help:      "Pending categories approved by staff.",
	})

	ListCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "list_cache_lookups_total",
		Help:      "Item list fragment cache lookups, by result.",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records each request under its chi route pattern, so
// /item/{id}/delete is one series rather than one per item.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
