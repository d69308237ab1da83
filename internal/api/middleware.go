package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clrpd/internal/metrics"
)

// statusWriter captures the response status for logging and metrics while
// forwarding Flush so SSE keeps working behind the middleware.
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

// Instrument wraps a handler with request logging and Prometheus metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		path := metricPath(r.URL.Path)
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur)
	})
}

// metricPath collapses resource IDs so the path label stays low-cardinality.
func metricPath(p string) string {
	collections := map[string]bool{
		"instances": true, "runs": true, "subscriptions": true, "webhook-deliveries": true,
	}
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		if collections[parts[i-1]] && parts[i] != "" && parts[i] != "import" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
