// Package overstay classifies currently-inside entities that exceeded a
// configurable stay duration.
package overstay

import (
	"context"
	"log/slog"
	"time"

	"github.com/codewandler/passage-go/core/ds"
	"github.com/codewandler/passage-go/core/timeline"
)

// Runner schedules a closure onto the engine's single-writer loop.
// runloop.Loop satisfies it.
type Runner interface {
	Submit(ctx context.Context, fn func()) error
}

// Tracker recomputes the overstayed set on a timer (period = a quarter of
// the threshold) and on every threshold change. It emits two distinct
// notifications: newly-overstayed ids (once per entity, until the entity
// next enters or exits) and the symmetric difference versus the previous
// set (every membership change, for list refresh).
//
// All methods except Run must be called from the writer flow.
type Tracker struct {
	log *slog.Logger
	tl  *timeline.Timeline
	now func() time.Time

	threshold time.Duration
	resched   chan time.Duration

	// notified holds ids already announced as overstayed; cleared per id
	// when the entity next acts
	notified *ds.Set[string]
	current  *ds.Set[string]

	onOverstayed []func(ids []string)
	onChanged    []func(ids []string)
}

type Option func(*Tracker)

func WithLogger(log *slog.Logger) Option { return func(t *Tracker) { t.log = log } }

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func New(tl *timeline.Timeline, threshold time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		log:       slog.Default(),
		tl:        tl,
		now:       time.Now,
		threshold: threshold,
		resched:   make(chan time.Duration, 1),
		notified:  ds.NewSet[string](),
		current:   ds.NewSet[string](),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(slog.String("component", "overstay"))

	// an entity entering or exiting resets its notification state
	tl.OnEvent(func(ev *timeline.Event) { t.notified.Remove(ev.EntityID) })

	return t
}

// OnOverstayed registers fn for ids that newly became overstayed.
func (t *Tracker) OnOverstayed(fn func(ids []string)) {
	t.onOverstayed = append(t.onOverstayed, fn)
}

// OnChanged registers fn for every change of the overstayed set membership;
// ids is the symmetric difference versus the previous set.
func (t *Tracker) OnChanged(fn func(ids []string)) {
	t.onChanged = append(t.onChanged, fn)
}

// Overstayed returns the current overstayed ids.
func (t *Tracker) Overstayed() []string { return t.current.Values() }

func (t *Tracker) Threshold() time.Duration { return t.threshold }

// SetThreshold replaces the threshold, recomputes immediately and
// reschedules the timer wholesale.
func (t *Tracker) SetThreshold(d time.Duration) {
	t.threshold = d
	t.Tick(t.now())
	select {
	case t.resched <- d:
	default:
	}
}

// Tick recomputes the overstayed set as of now.
func (t *Tracker) Tick(now time.Time) {
	next := ds.NewSet[string]()
	for _, e := range t.tl.Entities().Items() {
		if !e.Inside() {
			continue
		}
		if last, ok := e.LastAction(); ok && now.Sub(last) > t.threshold {
			next.Add(e.ID)
		}
	}

	newly := make([]string, 0)
	for _, id := range next.Values() {
		if !t.notified.Contains(id) {
			t.notified.Add(id)
			newly = append(newly, id)
		}
	}
	if len(newly) > 0 {
		t.log.Info("entities overstayed", slog.Any("ids", newly))
		for _, fn := range t.onOverstayed {
			fn(newly)
		}
	}

	if diff := t.current.Diff(next); diff.Len() > 0 {
		for _, fn := range t.onChanged {
			fn(diff.Values())
		}
	}
	t.current = next
}

// Run drives periodic recomputation until ctx is cancelled, submitting each
// tick onto runner so it executes on the writer flow. Threshold changes
// restart the timer.
func (t *Tracker) Run(ctx context.Context, runner Runner) {
	threshold := t.threshold
	for {
		period := threshold / 4
		if period <= 0 {
			period = time.Second
		}
		timer := time.NewTimer(period)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case threshold = <-t.resched:
			timer.Stop()
		case <-timer.C:
			if err := runner.Submit(ctx, func() { t.Tick(t.now()) }); err != nil {
				return
			}
		}
	}
}
