// Package otel bridges goAccount engine metrics to an OpenTelemetry meter.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per verify-latency bucket, then registers a single
// callback that reads [goAccount.Engine.MetricsSnapshot] on each collection.
// The caller owns the MeterProvider.
package otel
