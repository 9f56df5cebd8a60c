// Package middleware wraps HTTP handlers with cross-cutting behaviour.
package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"birdcam/internal/logger"
)

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// LoggingMiddleware logs every request at debug level and server errors at error level.
// Metric scrapes are not logged.
func LoggingMiddleware(l *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Round(time.Microsecond)
		if rec.status >= http.StatusInternalServerError {
			l.Error("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			return
		}
		l.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
	})
}
