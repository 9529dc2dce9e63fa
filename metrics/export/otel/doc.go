// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// New registers one Int64ObservableCounter per engine counter, a gauge per
// latency bucket and, for sources that can list suspensions, a gauge of live
// suspensions. A single callback reads the engine snapshot on each collection.
// The caller owns the MeterProvider.
package otel
