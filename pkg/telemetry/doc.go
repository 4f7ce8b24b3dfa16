// Package telemetry groups the observability support of rulekit.
//
//   - logging: builds the process *slog.Logger from configuration
//   - metrics: Prometheus collector implementing engine.Observer, plus the
//     /metrics handler
//   - tracing: OpenTelemetry SDK setup with an OTLP gRPC exporter
//   - health: liveness and readiness checks for the HTTP server
package telemetry
