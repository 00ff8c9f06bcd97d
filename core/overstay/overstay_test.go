package overstay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/passage-go/core/runloop"
	"github.com/codewandler/passage-go/core/timeline"
	"github.com/codewandler/passage-go/ports/store"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_000_000, 0).UTC()} }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestTracker(t *testing.T, threshold time.Duration) (*timeline.Timeline, *Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	tl := timeline.New(store.NewMemStore(timeline.Tables()...), timeline.WithClock(clock.Now))
	tr := New(tl, threshold, WithClock(clock.Now))
	return tl, tr, clock
}

func TestTracker_Classification(t *testing.T) {
	tl, tr, clock := newTestTracker(t, time.Minute)
	ctx := context.Background()

	var (
		overstayed [][]string
		changed    [][]string
	)
	tr.OnOverstayed(func(ids []string) { overstayed = append(overstayed, ids) })
	tr.OnChanged(func(ids []string) { changed = append(changed, ids) })

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	entered, _ := mustEntity(t, tl, "a").LastAction()

	// exactly at the threshold: not overstayed yet
	tr.Tick(entered.Add(time.Minute))
	require.Empty(t, tr.Overstayed())
	require.Empty(t, overstayed)

	// past the threshold: notified once
	tr.Tick(entered.Add(time.Minute + time.Second))
	require.Equal(t, []string{"a"}, tr.Overstayed())
	require.Equal(t, [][]string{{"a"}}, overstayed)
	require.Equal(t, [][]string{{"a"}}, changed)

	// still overstayed: no repeat notification, no membership change
	tr.Tick(entered.Add(2 * time.Minute))
	require.Equal(t, [][]string{{"a"}}, overstayed)
	require.Equal(t, [][]string{{"a"}}, changed)

	// exit clears both membership and the notified state
	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	tr.Tick(clock.Now())
	require.Empty(t, tr.Overstayed())
	require.Equal(t, [][]string{{"a"}, {"a"}}, changed)
	require.Equal(t, [][]string{{"a"}}, overstayed)

	// a new visit can overstay and be announced again
	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	entered, _ = mustEntity(t, tl, "a").LastAction()
	tr.Tick(entered.Add(time.Hour))
	require.Equal(t, [][]string{{"a"}, {"a"}}, overstayed)
}

func TestTracker_OnlyInsideEntities(t *testing.T) {
	tl, tr, _ := newTestTracker(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "in", nil))
	require.NoError(t, tl.HandleDetected(ctx, "out", nil))
	require.NoError(t, tl.HandleDetected(ctx, "out", nil)) // exits

	last, _ := mustEntity(t, tl, "out").LastAction()
	tr.Tick(last.Add(time.Hour))
	require.Equal(t, []string{"in"}, tr.Overstayed())
}

func TestTracker_SetThreshold(t *testing.T) {
	tl, tr, clock := newTestTracker(t, time.Minute)
	ctx := context.Background()

	var changed [][]string
	tr.OnChanged(func(ids []string) { changed = append(changed, ids) })

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))

	// advance the clock well past the current threshold
	for i := 0; i < 120; i++ {
		clock.Now()
	}
	tr.SetThreshold(time.Minute) // recomputes immediately
	require.Equal(t, []string{"a"}, tr.Overstayed())
	require.Equal(t, time.Minute, tr.Threshold())

	// raising the threshold shrinks the set on the immediate recompute
	tr.SetThreshold(24 * time.Hour)
	require.Empty(t, tr.Overstayed())
	require.Equal(t, [][]string{{"a"}, {"a"}}, changed)
}

func TestTracker_RunOnLoop(t *testing.T) {
	clock := newFakeClock()
	tl := timeline.New(store.NewMemStore(timeline.Tables()...), timeline.WithClock(clock.Now))
	// real wall clock vs the fake detection timestamps: any inside entity
	// is overstayed on the first periodic tick
	tr := New(tl, 200*time.Millisecond)

	loop := runloop.New(runloop.Options{})
	defer loop.Stop()

	require.NoError(t, loop.Do(context.Background(), func() error {
		return tl.HandleDetected(context.Background(), "a", nil)
	}))

	notified := make(chan []string, 1)
	tr.OnOverstayed(func(ids []string) {
		select {
		case notified <- ids:
		default:
		}
	})

	go tr.Run(context.Background(), loop)

	select {
	case ids := <-notified:
		require.Equal(t, []string{"a"}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker never fired")
	}
}

func mustEntity(t *testing.T, tl *timeline.Timeline, id string) *timeline.Entity {
	t.Helper()
	e, ok := tl.Entities().Get(id)
	require.True(t, ok)
	return e
}
