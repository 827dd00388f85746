// Package trace assigns request ids and writes the access log.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxIncomingIDLen bounds ids accepted from upstream proxies.
const maxIncomingIDLen = 64

type requestIDKey struct{}

// Middleware assigns request ids, logs one line per request and keeps
// request counters.
type Middleware struct {
	clientIP func(*http.Request) string

	total        atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	lastLatency  atomic.Int64 // nanoseconds
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	Total        int64
	ClientErrors int64
	ServerErrors int64
	LastLatency  time.Duration
}

// NewMiddleware creates the middleware. clientIP may be nil.
func NewMiddleware(clientIP func(*http.Request) string) *Middleware {
	return &Middleware{clientIP: clientIP}
}

// Middleware reuses an incoming X-Request-ID so ids survive a reverse proxy.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxIncomingIDLen {
			id = NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.total.Add(1)
		m.lastLatency.Store(int64(elapsed))

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
			m.serverErrors.Add(1)
		case rec.status >= 400:
			level = slog.LevelWarn
			m.clientErrors.Add(1)
		}

		attrs := []any{
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", elapsed.Milliseconds(),
		}
		if m.clientIP != nil {
			attrs = append(attrs, "client_ip", m.clientIP(r))
		}
		slog.Log(ctx, level, "HTTP request", attrs...)
	})
}

// Metrics returns the current counters.
func (m *Middleware) Metrics() Metrics {
	return Metrics{
		Total:        m.total.Load(),
		ClientErrors: m.clientErrors.Load(),
		ServerErrors: m.serverErrors.Load(),
		LastLatency:  time.Duration(m.lastLatency.Load()),
	}
}

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// RequestID returns the id stored by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDFromRequest is RequestID for APIs that take the request.
func RequestIDFromRequest(r *http.Request) string {
	return RequestID(r.Context())
}
