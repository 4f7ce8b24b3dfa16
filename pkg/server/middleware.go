package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"aiemployee/rulekit/pkg/telemetry/logging"
	"aiemployee/rulekit/pkg/telemetry/tracing"
)

// requestLogger logs each completed request. It must run after
// middleware.RequestID so the request ID is available; the ID is also
// stored for logging.FromContext. An incoming W3C trace context becomes the
// parent of the spans opened while handling the request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())
			ctx := logging.WithRequestID(r.Context(), requestID)
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("request_id", requestID),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if traceID := tracing.TraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			logger.LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}
