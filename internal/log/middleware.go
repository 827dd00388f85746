package log

import (
	"context"
	"log/slog"
	"net/http"

	"gestao/internal/core"
)

// ContextKey type for context keys
type ContextKey string

// LoggerContextKey is the context key for the request logger.
const LoggerContextKey ContextKey = "logger"

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the request logger, or the default logger tagged
// "unknown" outside a request.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds the request id to the request logger. It must run
// inside Middleware.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger writes the record audit trail.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// RecordLogger is the audit logger of the request in ctx.
func RecordLogger(ctx context.Context) *StructuredLogger {
	return NewStructuredLogger(FromContext(ctx))
}

// LogRecordChanged logs a persisted create or update.
func (sl *StructuredLogger) LogRecordChanged(ctx context.Context, op string, rec core.PurchaseRecord) {
	fields := NewFields().
		WithRecord(rec.ID, rec.Base, string(rec.Categoria), rec.Valor.String()).
		WithOperation(op)

	sl.logger.InfoContext(ctx, "Record "+op+"d", fields.ToSlice()...)
}

// LogRecordDeleted logs a persisted delete.
func (sl *StructuredLogger) LogRecordDeleted(ctx context.Context, id string) {
	fields := NewFields().WithOperation(OpDelete)
	fields[FieldRecordID] = id

	sl.logger.InfoContext(ctx, "Record deleted", fields.ToSlice()...)
}

// LogRejected logs a submission blocked by validation
func (sl *StructuredLogger) LogRejected(ctx context.Context, op string, rejected []string) {
	fields := NewFields().WithOperation(op)
	fields[FieldFields] = rejected

	sl.logger.WarnContext(ctx, "Record submission rejected", fields.ToSlice()...)
}
