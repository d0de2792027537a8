// Package sink defines the uniform sink driver capability set (spec.md
// §4.6) implemented by the Prometheus and InfluxDB drivers.
package sink

import "context"

// Sink is the uniform capability set every driver implements.
type Sink interface {
	// AddMetric declares a metric's Prometheus-style type and help text.
	AddMetric(name, metricType, description string)

	// Clear acquires a host-scoped exclusive update for (host, metricName)
	// and erases its per-host rows.
	Clear(host, metricName string)

	// UpdateMetric inserts or overwrites a row keyed by canonicalised
	// labels, stamped with the current time.
	UpdateMetric(host, metricName string, labels map[string]string, value float64)

	// ReleaseUpdateLock releases the lock taken by Clear. Called even when
	// the caller's update loop returned an error.
	ReleaseUpdateLock(host, metricName string)

	// StartServing begins background output: an HTTP server for
	// Prometheus, a periodic pusher for InfluxDB. It blocks until ctx is
	// cancelled (or serving fails) and then returns.
	StartServing(ctx context.Context) error
}
