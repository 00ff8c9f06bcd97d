// Package prometheus provides the Prometheus implementation of the engine
// metrics interface.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/passage-go/core/metrics"
	"github.com/codewandler/passage-go/core/timeline"
)

// timer wraps a Prometheus observer to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

type timelineMetrics struct {
	detections     *prometheus.CounterVec
	commitDuration prometheus.Histogram
	slowCommits    prometheus.Counter
	replayDuration prometheus.Histogram
	eventsReplayed prometheus.Counter
	countInside    prometheus.Gauge
}

// NewTimelineMetrics creates a Prometheus implementation of
// timeline.Metrics, registered on reg.
func NewTimelineMetrics(reg prometheus.Registerer) timeline.Metrics {
	m := &timelineMetrics{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_detections_total",
			Help: "Total number of handled detections",
		}, []string{"kind", "success"}),

		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "passage_commit_duration_seconds",
			Help:    "Persistence commit latency in seconds",
			Buckets: defaultBuckets,
		}),

		slowCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passage_slow_commits_total",
			Help: "Total number of commits exceeding the configured budget",
		}),

		replayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "passage_replay_duration_seconds",
			Help:    "Startup replay latency in seconds",
			Buckets: defaultBuckets,
		}),

		eventsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passage_events_replayed_total",
			Help: "Total number of events processed during replay",
		}),

		countInside: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passage_count_inside",
			Help: "Current number of entities inside the boundary",
		}),
	}

	reg.MustRegister(
		m.detections,
		m.commitDuration,
		m.slowCommits,
		m.replayDuration,
		m.eventsReplayed,
		m.countInside,
	)
	return m
}

func (m *timelineMetrics) DetectionProcessed(kind timeline.EventKind, success bool) {
	s := "true"
	if !success {
		s = "false"
	}
	m.detections.WithLabelValues(string(kind), s).Inc()
}

func (m *timelineMetrics) CommitDuration() metrics.Timer { return newTimer(m.commitDuration) }
func (m *timelineMetrics) SlowCommit()                   { m.slowCommits.Inc() }
func (m *timelineMetrics) ReplayDuration() metrics.Timer { return newTimer(m.replayDuration) }
func (m *timelineMetrics) EventsReplayed(count int)      { m.eventsReplayed.Add(float64(count)) }
func (m *timelineMetrics) CountInside(v int)             { m.countInside.Set(float64(v)) }

var _ timeline.Metrics = (*timelineMetrics)(nil)
