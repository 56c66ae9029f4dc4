// Package tracing provides OpenTelemetry tracing integration: an HTTP
// middleware that extracts W3C trace context from incoming requests,
// starts a server span per request, and echoes the trace id back in an
// X-Trace-Id response header.
//
// Example usage:
//
//	mux := http.NewServeMux()
//	mux.Handle("/", someHandler)
//	handler := tracing.Middleware(mux)
//	http.ListenAndServe(":8080", handler)
package tracing
