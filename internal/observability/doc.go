// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, SLO recording, and
// OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO-driven alerting thresholds
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - slo: SLO target metrics (latency, error budget)
//   - tracing: OpenTelemetry HTTP middleware and span helpers
//
// Example usage:
//
//	import (
//	    "planetcf/internal/observability/logging"
//	    "planetcf/internal/observability/tracing"
//	)
//
//	func main() {
//	    logger := logging.NewFromEnv()
//	    logger.Info("application started")
//
//	    handler := tracing.Middleware(mux)
//	}
package observability
