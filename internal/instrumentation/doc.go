// Package instrumentation wires OpenTelemetry metrics and tracing.
//
// A Provider owns the meter and tracer providers and the exporters
// behind them. Metrics can be exported through Prometheus (pull),
// OTLP (push), or stdout; tracing through OTLP or stdout, and is off
// by default. The Metrics type is the single recording surface the
// rest of the code talks to; with instrumentation disabled it degrades
// to no-ops so callers never need nil checks.
package instrumentation
