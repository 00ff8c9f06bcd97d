package timeline

import "github.com/codewandler/passage-go/core/metrics"

// Metrics defines the instrumentation surface of the engine. All methods
// must be safe to call from the writer flow; implementations should be
// cheap.
type Metrics interface {
	// DetectionProcessed counts one handled detection by event kind.
	DetectionProcessed(kind EventKind, success bool)
	// CommitDuration times one persistence commit.
	CommitDuration() metrics.Timer
	// SlowCommit counts commits that exceeded the configured budget.
	SlowCommit()
	// ReplayDuration times one startup replay.
	ReplayDuration() metrics.Timer
	// EventsReplayed counts events processed during replay.
	EventsReplayed(count int)
	// CountInside tracks the current global count-inside value.
	CountInside(v int)
}

type nopMetrics struct{}

func (nopMetrics) DetectionProcessed(EventKind, bool) {}
func (nopMetrics) CommitDuration() metrics.Timer      { return metrics.NopTimer() }
func (nopMetrics) SlowCommit()                        {}
func (nopMetrics) ReplayDuration() metrics.Timer      { return metrics.NopTimer() }
func (nopMetrics) EventsReplayed(int)                 {}
func (nopMetrics) CountInside(int)                    {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
