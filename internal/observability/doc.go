// Package observability holds the ambient telemetry of the bot runtime:
// a redacting slog logger, Prometheus dispatch and session metrics, and
// OpenTelemetry tracing for dispatched handlers.
//
// Every piece degrades to a no-op. A nil *Metrics records nothing and a
// Tracer without an endpoint hands out non-recording spans, so packages can
// take these as optional dependencies.
package observability
