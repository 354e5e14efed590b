package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/quotelab/feedgate/logger"
)

// slowRequestThreshold marks requests worth flagging in the log even when
// they succeed.
const slowRequestThreshold = 500 * time.Millisecond

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Health and metrics probes are silently
// skipped. Log level follows the response status: 5xx at error, 4xx at
// warn, everything else at debug.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbeEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			path := r.URL.Path
			if q := r.URL.RawQuery; q != "" {
				path = path + "?" + q
			}

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        path,
				"status":      sw.status,
				"duration_ms": duration.Milliseconds(),
				"client":      clientAddr(r),
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields["request_id"] = id
			}
			if duration > slowRequestThreshold {
				fields["slow"] = true
			}

			logByStatus(log, fields, sw.status)
		})
	}
}

// isProbeEndpoint reports whether the path belongs to a health or metrics
// probe that would otherwise flood the request log.
func isProbeEndpoint(path string) bool {
	switch path {
	case "/health", "/health/live", "/health/ready", "/metrics":
		return true
	}
	return false
}

// clientAddr strips the port from the remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// logByStatus logs request fields at the appropriate level based on HTTP
// status code. If log is nil, the global logger is used.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	logErr := logger.Error
	logWarn := logger.Warn
	logDebug := logger.Debug
	if log != nil {
		logErr = log.Error
		logWarn = log.Warn
		logDebug = log.Debug
	}

	switch {
	case status >= 500:
		logErr("Request completed", fields)
	case status >= 400:
		logWarn("Request completed", fields)
	default:
		logDebug("Request completed", fields)
	}
}
