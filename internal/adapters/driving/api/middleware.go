package api

import (
	"net/http"
	"time"

	"github.com/custodia-labs/docqa/internal/logger"
)

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs one line per request with status and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Round(time.Millisecond)
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("%s %s %d %s", r.Method, r.URL.Path, rec.status, duration)
			return
		}
		logger.Info("%s %s %d %s", r.Method, r.URL.Path, rec.status, duration)
	})
}
