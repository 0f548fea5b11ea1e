package middleware

import (
	"net/http"
	"time"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
)

// RequestIDHeader carries the correlation id in both directions
const RequestIDHeader = "X-Request-ID"

// Logging assigns a request id and logs every request with method, path,
// status and duration once it completes
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = utils.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(logging.ContextWithRequestID(r.Context(), requestID))

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", wrapped.status),
				logging.Int64("duration_ms", time.Since(start).Milliseconds()),
				logging.String("remote_addr", r.RemoteAddr),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, logging.String("query", r.URL.RawQuery))
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				fields = append(fields, logging.String("user_agent", ua))
			}

			log := logger.WithContext(r.Context())
			switch {
			case wrapped.status >= 500:
				log.Error("HTTP request completed", nil, fields...)
			case wrapped.status >= 400:
				log.Warn("HTTP request completed", fields...)
			default:
				log.Info("HTTP request completed", fields...)
			}
		})
	}
}
