// Package metrics defines the sinks that observe annealing runs. Sinks like
// PromSink and InfluxSink record progress snapshots and final results and can
// be combined with NewMultiSink. NewMetricsSink builds sinks from
// configuration through a registry filled by infra/metrics.
package metrics
