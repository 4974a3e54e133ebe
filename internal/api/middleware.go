package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per request after it completes.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case ww.Status() >= 500:
				logger.Error("request", fields...)
			case r.URL.Path == "/health" || r.URL.Path == "/ready":
				logger.Debug("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}
