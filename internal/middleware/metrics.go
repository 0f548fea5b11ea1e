package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"webhook-gateway/internal/metrics"
)

// Metrics records request counts and latency per route template, so
// /webhooks/{webhookId}/{endpointPath} is one series however many
// endpoints exist
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)
			collector.ObserveHTTP(r.Method, routeTemplate(r), wrapped.status, time.Since(start))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
