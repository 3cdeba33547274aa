package logger

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// HTTPMiddleware returns chi-compatible request logging middleware.
func HTTPMiddleware(base Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, id := EnsureHTTPCorrelationID(r)
			w.Header().Set(CorrelationIDHeader, id)

			reqLog := base.WithFields(
				StringField("client_ip", r.RemoteAddr),
				StringField("http_method", r.Method),
				StringField("http_path", r.URL.Path),
				CorrelationIDField(id),
			)
			reqLog.Debug("HTTP request received")

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			reqLog.Info("HTTP response sent",
				IntField("http_status", rec.status),
				IntField("response_bytes", rec.bytes),
				DurationField("duration", time.Since(start)),
			)
		})
	}
}
