// Package metrics provides abstract metrics interfaces so the engine can be
// instrumented by pluggable backends (Prometheus, StatsD, etc.) without
// coupling core packages to any specific implementation.
package metrics

// Counter is a monotonically increasing metric.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()
	// Add increments the counter by delta. delta must be >= 0.
	Add(delta float64)
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to value.
	Set(value float64)
	// Inc increments the gauge by 1.
	Inc()
	// Dec decrements the gauge by 1.
	Dec()
}

// Timer measures the duration of an operation. Call ObserveDuration when the
// operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}

// === no-op implementations ===

type (
	nopCounter struct{}
	nopGauge   struct{}
	nopTimer   struct{}
)

func (nopCounter) Inc()            {}
func (nopCounter) Add(float64)     {}
func (nopGauge) Set(float64)       {}
func (nopGauge) Inc()              {}
func (nopGauge) Dec()              {}
func (nopTimer) ObserveDuration()  {}

// NopCounter returns a no-op Counter.
func NopCounter() Counter { return nopCounter{} }

// NopGauge returns a no-op Gauge.
func NopGauge() Gauge { return nopGauge{} }

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }
